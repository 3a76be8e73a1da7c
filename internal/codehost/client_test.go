package codehost

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivemirror/internal/utils"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{Token: "ghp_test", BaseURL: srv.URL, RequestsPerSecond: 1000}, nil)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Options{}, nil)
	require.Error(t, err)
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCodeAuthRequired, appErr.CLIError.Code)
}

func TestGetDefaultBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/handbook", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"default_branch": "trunk"})
	})
	branch, err := newTestClient(t, mux).GetDefaultBranch(context.Background(), "acme", "handbook")
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)
}

func TestGetDefaultBranch_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/handbook", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	_, err := newTestClient(t, mux).GetDefaultBranch(context.Background(), "acme", "handbook")
	require.Error(t, err)
	assert.True(t, utils.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, utils.HTTPStatus(err))
}

func TestListPullRequests_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/repos/acme/handbook/pulls", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "acme:drive-sync", q.Get("head"))
		assert.Equal(t, "main", q.Get("base"))
		assert.Equal(t, "open", q.Get("state"))
		if q.Get("page") == "" {
			w.Header().Set("Link", `<`+srvURL+`/repos/acme/handbook/pulls?page=2>; rel="next"`)
			writeJSON(w, http.StatusOK, []map[string]any{{"number": 1, "html_url": "https://x/1"}})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{{"number": 2, "html_url": "https://x/2"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	c, err := NewClient(Options{Token: "t", BaseURL: srv.URL, RequestsPerSecond: 1000}, nil)
	require.NoError(t, err)

	prs, err := c.ListPullRequests(context.Background(), "acme", "handbook", ListOptions{Head: "acme:drive-sync", Base: "main"})
	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, 1, prs[0].Number)
	assert.Equal(t, "https://x/2", prs[1].URL)
}

func TestCreatePullRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/handbook/pulls", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "drive-sync", body["head"])
		assert.Equal(t, "main", body["base"])
		writeJSON(w, http.StatusCreated, map[string]any{
			"number":   7,
			"html_url": "https://github.com/acme/handbook/pull/7",
			"title":    body["title"],
			"head":     map[string]any{"ref": "drive-sync"},
			"base":     map[string]any{"ref": "main"},
		})
	})
	pr, err := newTestClient(t, mux).CreatePullRequest(context.Background(), "acme", "handbook", NewPullRequest{
		Title: "Sync", Body: "body", Head: "drive-sync", Base: "main",
	})
	require.NoError(t, err)
	assert.Equal(t, PullRequest{
		Number: 7,
		URL:    "https://github.com/acme/handbook/pull/7",
		Title:  "Sync",
		Head:   "drive-sync",
		Base:   "main",
	}, *pr)
}

func TestCreatePullRequest_NoCommitsBetween(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/handbook/pulls", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "Validation Failed",
			"errors":  []map[string]any{{"resource": "PullRequest", "code": "custom", "message": "No commits between main and drive-sync"}},
		})
	})
	_, err := newTestClient(t, mux).CreatePullRequest(context.Background(), "acme", "handbook", NewPullRequest{Head: "drive-sync", Base: "main"})
	require.Error(t, err)
	assert.True(t, utils.IsConflict(err))
	assert.Contains(t, err.Error(), "No commits between main and drive-sync")
}

func TestUpdatePullRequest_KeepsHead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/handbook/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.NotContains(t, body, "head")
		assert.Equal(t, "main", body["base"])
		assert.Equal(t, "New title", body["title"])
		writeJSON(w, http.StatusOK, map[string]any{"number": 7, "title": "New title"})
	})
	pr, err := newTestClient(t, mux).UpdatePullRequest(context.Background(), "acme", "handbook", 7, PullRequestUpdate{
		Title: "New title", Body: "b", Base: "main",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
}
