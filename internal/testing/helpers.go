package testing

import (
	"context"
	"testing"

	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// TestContext creates a standard test context
func TestContext() context.Context {
	return context.Background()
}

// TestRemoteFile creates a remote file at path owned by a person, the way
// Drive reports uploads into a shared folder
func TestRemoteFile(id, path, contentType string) types.RemoteItem {
	name := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			name = path[i+1:]
			break
		}
	}
	return types.RemoteItem{
		ID:          id,
		Name:        name,
		Path:        path,
		ContentType: contentType,
		ModifiedAt:  "2026-01-01T00:00:00.000Z",
		OwnerEmail:  "editor@example.com",
	}
}

// TestOwnedRemoteFile creates a remote file owned by the service identity
func TestOwnedRemoteFile(id, path, contentType string) types.RemoteItem {
	item := TestRemoteFile(id, path, contentType)
	item.OwnerEmail = ""
	item.OwnedByServiceIdentity = true
	return item
}

// TestRemoteFolder creates a remote folder
func TestRemoteFolder(id, name string) types.RemoteItem {
	return types.RemoteItem{
		ID:          id,
		Name:        name,
		ContentType: utils.MimeTypeFolder,
		IsFolder:    true,
	}
}

// TestAPIError builds an AppError carrying an HTTP status
func TestAPIError(code string, status int) error {
	return utils.NewAppError(utils.NewCLIError(code, "test error").WithHTTPStatus(status).Build())
}

// AssertNoError is a helper to fail the test if error is not nil
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: %v", msgAndArgs[0], err)
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// AssertError is a helper to fail the test if error is nil
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: expected error but got nil", msgAndArgs[0])
		} else {
			t.Fatal("expected error but got nil")
		}
	}
}

// AssertEqual is a helper to fail the test if two values are not equal
func AssertEqual(t *testing.T, got, want interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if got != want {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: got %v, want %v", msgAndArgs[0], got, want)
		} else {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
