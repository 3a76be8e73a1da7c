package mocks

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/dl-alexandre/drivemirror/internal/types"
)

// Call records one invocation on a mock.
type Call struct {
	Method string
	Args   []string
}

type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) record(method string, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of every recorded call in order.
func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallCount returns how often method was called.
func (r *recorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// MockRemote is a Func-field mock of the remote storage client. Unset
// funcs succeed with empty results.
type MockRemote struct {
	recorder

	ListChildrenFunc             func(ctx context.Context, folderID, pageToken string) (types.RemotePage, error)
	ListPermissionsFunc          func(ctx context.Context, itemID string) ([]types.Permission, error)
	ExportFunc                   func(ctx context.Context, itemID, targetType string) (io.ReadCloser, error)
	DownloadFunc                 func(ctx context.Context, itemID string) (io.ReadCloser, error)
	CopyFunc                     func(ctx context.Context, itemID, newType, newName string) (string, error)
	DeleteFunc                   func(ctx context.Context, itemID string) error
	TrashFunc                    func(ctx context.Context, itemID string) error
	RequestOwnershipTransferFunc func(ctx context.Context, itemID, newOwner string) error
}

// NewMockRemote creates a mock with no behavior configured
func NewMockRemote() *MockRemote {
	return &MockRemote{}
}

func (m *MockRemote) ListChildren(ctx context.Context, folderID, pageToken string) (types.RemotePage, error) {
	m.record("ListChildren", folderID, pageToken)
	if m.ListChildrenFunc != nil {
		return m.ListChildrenFunc(ctx, folderID, pageToken)
	}
	return types.RemotePage{}, nil
}

func (m *MockRemote) ListPermissions(ctx context.Context, itemID string) ([]types.Permission, error) {
	m.record("ListPermissions", itemID)
	if m.ListPermissionsFunc != nil {
		return m.ListPermissionsFunc(ctx, itemID)
	}
	return nil, nil
}

func (m *MockRemote) Export(ctx context.Context, itemID, targetType string) (io.ReadCloser, error) {
	m.record("Export", itemID, targetType)
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, itemID, targetType)
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4 exported " + itemID)), nil
}

func (m *MockRemote) Download(ctx context.Context, itemID string) (io.ReadCloser, error) {
	m.record("Download", itemID)
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, itemID)
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4 downloaded " + itemID)), nil
}

func (m *MockRemote) Copy(ctx context.Context, itemID, newType, newName string) (string, error) {
	m.record("Copy", itemID, newType, newName)
	if m.CopyFunc != nil {
		return m.CopyFunc(ctx, itemID, newType, newName)
	}
	return itemID + "-copy", nil
}

func (m *MockRemote) Delete(ctx context.Context, itemID string) error {
	m.record("Delete", itemID)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, itemID)
	}
	return nil
}

func (m *MockRemote) Trash(ctx context.Context, itemID string) error {
	m.record("Trash", itemID)
	if m.TrashFunc != nil {
		return m.TrashFunc(ctx, itemID)
	}
	return nil
}

func (m *MockRemote) RequestOwnershipTransfer(ctx context.Context, itemID, newOwner string) error {
	m.record("RequestOwnershipTransfer", itemID, newOwner)
	if m.RequestOwnershipTransferFunc != nil {
		return m.RequestOwnershipTransferFunc(ctx, itemID, newOwner)
	}
	return nil
}
