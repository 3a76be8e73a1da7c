package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/dl-alexandre/drivemirror/internal/utils"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	c := NewClient(svc, ClientOptions{
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func apiError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    status,
			"message": http.StatusText(status),
			"errors":  []map[string]string{{"reason": reason, "message": http.StatusText(status)}},
		},
	})
}

func TestListChildren(t *testing.T) {
	var gotQuery, gotToken string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotToken = r.URL.Query().Get("pageToken")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"nextPageToken": "next-1",
			"files": []map[string]interface{}{
				{
					"id":           "D1",
					"name":         "Handbook",
					"mimeType":     utils.MimeTypeDocument,
					"modifiedTime": "2026-01-02T03:04:05.000Z",
					"ownedByMe":    true,
					"webViewLink":  "https://docs.google.com/document/d/D1",
					"owners":       []map[string]string{{"emailAddress": "svc@example.iam.gserviceaccount.com"}},
					"resourceKey":  "rk-1",
				},
				{
					"id":          "P1",
					"name":        "brief.pdf",
					"mimeType":    utils.MimeTypePDF,
					"md5Checksum": "9e107d9d372bb6826bd81d3542a419d6",
					"ownedByMe":   false,
					"owners":      []map[string]string{{"emailAddress": "alice@example.com"}},
				},
				{"id": "F1", "name": "sub", "mimeType": utils.MimeTypeFolder},
			},
		})
	})

	page, err := c.ListChildren(context.Background(), "root-folder", "tok-0")
	require.NoError(t, err)

	assert.Equal(t, "'root-folder' in parents and trashed = false", gotQuery)
	assert.Equal(t, "tok-0", gotToken)
	assert.Equal(t, "next-1", page.NextPageToken)
	require.Len(t, page.Items, 3)

	doc := page.Items[0]
	assert.True(t, doc.OwnedByServiceIdentity)
	assert.False(t, doc.Hashable())
	assert.Equal(t, "https://docs.google.com/document/d/D1", doc.ViewURL)

	pdf := page.Items[1]
	assert.Equal(t, "9e107d9d372bb6826bd81d3542a419d6", pdf.ContentHash)
	assert.Equal(t, "alice@example.com", pdf.OwnerEmail)
	assert.False(t, pdf.OwnedByServiceIdentity)

	assert.True(t, page.Items[2].IsFolder)

	key, ok := c.ResourceKeys().GetKey("D1")
	assert.True(t, ok)
	assert.Equal(t, "rk-1", key)
}

func TestExecuteWithRetry_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			apiError(w, http.StatusServiceUnavailable, "backendError")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"files": []interface{}{}})
	})

	page, err := c.ListChildren(context.Background(), "root", "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteWithRetry_DoesNotRetryPermanent(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reason string
		check  func(error) bool
	}{
		{name: "not found", status: http.StatusNotFound, reason: "notFound", check: utils.IsNotFound},
		{name: "forbidden", status: http.StatusForbidden, reason: "insufficientFilePermissions", check: utils.IsPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				apiError(w, tt.status, tt.reason)
			})

			err := c.Trash(context.Background(), "gone")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
			assert.Equal(t, tt.status, utils.HTTPStatus(err))
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestExecuteWithRetry_ExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiError(w, http.StatusTooManyRequests, "rateLimitExceeded")
	})

	_, err := c.About(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsTransient(err))
	assert.Equal(t, int32(4), calls.Load())
}

func TestExport_StreamsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/D1/export", r.URL.Path)
		assert.Equal(t, utils.MimeTypePDF, r.URL.Query().Get("mimeType"))
		w.Header().Set("Content-Type", utils.MimeTypePDF)
		_, _ = io.WriteString(w, "%PDF-1.7 body")
	})

	rc, err := c.Export(context.Background(), "D1", utils.MimeTypePDF)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "%PDF-1.7 body", string(data))
}

func TestCopy_ConvertsType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/X1/copy", r.URL.Path)
		var body drive.File
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, utils.MimeTypeDocument, body.MimeType)
		assert.Equal(t, "tmp-report", body.Name)
		writeJSON(w, http.StatusOK, map[string]string{"id": "X1-copy"})
	})

	id, err := c.Copy(context.Background(), "X1", utils.MimeTypeDocument, "tmp-report")
	require.NoError(t, err)
	assert.Equal(t, "X1-copy", id)
}

func TestRequestOwnershipTransfer(t *testing.T) {
	t.Run("existing permission is marked pending owner", func(t *testing.T) {
		var patched atomic.Bool
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/files/U1/permissions":
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"permissions": []map[string]interface{}{
						{"id": "p-owner", "type": "user", "role": "owner", "emailAddress": "alice@example.com"},
						{"id": "p-svc", "type": "user", "role": "writer", "emailAddress": "SVC@example.com"},
					},
				})
			case r.Method == http.MethodPatch && r.URL.Path == "/files/U1/permissions/p-svc":
				var body drive.Permission
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.True(t, body.PendingOwner)
				patched.Store(true)
				writeJSON(w, http.StatusOK, map[string]interface{}{"id": "p-svc", "pendingOwner": true})
			default:
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusTeapot)
			}
		})

		require.NoError(t, c.RequestOwnershipTransfer(context.Background(), "U1", "svc@example.com"))
		assert.True(t, patched.Load())
	})

	t.Run("missing permission is created first", func(t *testing.T) {
		var created atomic.Bool
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet:
				writeJSON(w, http.StatusOK, map[string]interface{}{"permissions": []interface{}{}})
			case r.Method == http.MethodPost && r.URL.Path == "/files/U1/permissions":
				created.Store(true)
				writeJSON(w, http.StatusOK, map[string]string{"id": "p-new"})
			case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/permissions/p-new"):
				writeJSON(w, http.StatusOK, map[string]interface{}{"id": "p-new", "pendingOwner": true})
			default:
				w.WriteHeader(http.StatusTeapot)
			}
		})

		require.NoError(t, c.RequestOwnershipTransfer(context.Background(), "U1", "svc@example.com"))
		assert.True(t, created.Load())
	})

	t.Run("rejected update surfaces the error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"permissions": []map[string]interface{}{{"id": "p-svc", "emailAddress": "svc@example.com", "role": "reader"}},
				})
				return
			}
			apiError(w, http.StatusForbidden, "forbidden")
		})

		err := c.RequestOwnershipTransfer(context.Background(), "U1", "svc@example.com")
		assert.True(t, utils.IsPermissionDenied(err))
	})
}

func TestResourceKeyManager_BuildHeader(t *testing.T) {
	m := NewResourceKeyManager()
	m.UpdateFromAPIResponse("b", "kb")
	m.UpdateFromAPIResponse("a", "ka")
	m.UpdateFromAPIResponse("c", "")

	assert.Equal(t, "a/ka,b/kb", m.BuildHeader([]string{"b", "a", "c"}))

	h := http.Header{}
	m.Apply(h, "missing")
	assert.Empty(t, h.Get(resourceKeysHeader))

	m.Invalidate("a")
	m.Apply(h, "a", "b")
	assert.Equal(t, "b/kb", h.Get(resourceKeysHeader))
}
