package publish

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivemirror/internal/codehost"
	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/sync/diff"
	"github.com/dl-alexandre/drivemirror/internal/testing/mocks"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
	"github.com/dl-alexandre/drivemirror/internal/vcs"
)

type fakeGit struct {
	steps  []string
	author vcs.Author
	fail   string
}

func (g *fakeGit) do(step string) error {
	g.steps = append(g.steps, step)
	if g.fail == step {
		return errors.New(step + " failed")
	}
	return nil
}

func (g *fakeGit) CheckoutBranch(_ context.Context, branch string) error {
	return g.do("checkout " + branch)
}

func (g *fakeGit) AddAll(_ context.Context, paths ...string) error {
	return g.do("add " + strings.Join(paths, ","))
}

func (g *fakeGit) Commit(_ context.Context, message string, author vcs.Author) error {
	g.author = author
	return g.do("commit " + message)
}

func (g *fakeGit) Push(_ context.Context, branch string) error {
	return g.do("push " + branch)
}

type fakeStatus struct {
	changed  bool
	prefixes []string
}

func (s *fakeStatus) HasChanges(prefixes ...string) (bool, error) {
	s.prefixes = prefixes
	return s.changed, nil
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Source: config.SourceConfig{Repo: "acme/handbook"},
		Targets: config.TargetsConfig{Forks: []config.ForkConfig{
			{DriveFolderID: "F1", Path: "docs"},
			{DriveFolderID: "F2", Path: "reports"},
		}},
		Publish: config.PublishConfig{
			Branch:        "drive-sync",
			Base:          "main",
			Title:         "Sync",
			CommitMessage: "Sync from Drive",
			AuthorName:    "drivemirror",
			AuthorEmail:   "bot@example.com",
		},
	}
}

func TestPublisher_CommitsPushesAndOpens(t *testing.T) {
	git := &fakeGit{}
	status := &fakeStatus{changed: true}
	host := mocks.NewMockCodeHost()
	proto, _ := newTestProtocol(host)

	out, err := NewPublisher(git, status, proto, nil).Publish(context.Background(), testSyncConfig(), nil)
	require.NoError(t, err)
	assert.True(t, out.Committed)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Created)

	assert.Equal(t, []string{
		"checkout drive-sync",
		"add docs,reports",
		"commit Sync from Drive",
		"push drive-sync",
	}, git.steps)
	assert.Equal(t, vcs.Author{Name: "drivemirror", Email: "bot@example.com"}, git.author)
	assert.Equal(t, []string{"docs", "reports"}, status.prefixes)
	assert.Equal(t, 1, host.CallCount("CreatePullRequest"))
}

func TestPublisher_CleanTreeStillOpensPullRequest(t *testing.T) {
	tests := []struct {
		name        string
		create      func(context.Context, string, string, codehost.NewPullRequest) (*codehost.PullRequest, error)
		wantCreated bool
		wantNoOp    bool
	}{
		{
			name:        "branch pushed by a run that stopped before the pull request",
			wantCreated: true,
		},
		{
			name: "branch has nothing new",
			create: func(context.Context, string, string, codehost.NewPullRequest) (*codehost.PullRequest, error) {
				return nil, ghError(utils.ErrCodeConflict, http.StatusUnprocessableEntity, "Validation Failed: No commits between main and drive-sync")
			},
			wantNoOp: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			git := &fakeGit{}
			host := mocks.NewMockCodeHost()
			host.CreatePullRequestFunc = tt.create
			proto, _ := newTestProtocol(host)

			out, err := NewPublisher(git, &fakeStatus{}, proto, nil).Publish(context.Background(), testSyncConfig(), nil)
			require.NoError(t, err)
			assert.False(t, out.Committed)
			require.NotNil(t, out.Result)
			assert.Equal(t, tt.wantCreated, out.Result.Created)
			assert.Equal(t, tt.wantNoOp, out.Result.NoChanges())
			assert.Equal(t, []string{"checkout drive-sync", "add docs,reports", "push drive-sync"}, git.steps)
			assert.Equal(t, 1, host.CallCount("CreatePullRequest"))
		})
	}
}

func TestPublisher_PushFailureStopsBeforeProtocol(t *testing.T) {
	git := &fakeGit{fail: "push drive-sync"}
	host := mocks.NewMockCodeHost()
	proto, _ := newTestProtocol(host)

	_, err := NewPublisher(git, &fakeStatus{changed: true}, proto, nil).Publish(context.Background(), testSyncConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push drive-sync")
	assert.Empty(t, host.Calls())
}

func TestRenderBody_Deterministic(t *testing.T) {
	docs := ForkReport{
		Path:     "docs",
		DriveURL: "https://drive.google.com/drive/folders/F1",
		Changes: []diff.Action{
			{Type: diff.ActionRemove, Path: "old--X.link.json", Reason: diff.ReasonGone},
			{Type: diff.ActionMaterialize, Path: "a/brief--P1.pdf.link.json", Reason: diff.ReasonNew},
		},
		Untracked: []types.UntrackedItem{
			{ID: "U2", Name: "z", Path: "z.txt", OwnerEmail: "z@example.com", Resolution: types.ResolutionIgnored},
			{ID: "U1", Name: "a", Path: "a.txt", URL: "https://drive/U1", OwnerEmail: "a@example.com", Resolution: types.ResolutionFailed, Error: "403"},
		},
	}
	reports := ForkReport{Path: "reports"}

	first := RenderBody([]ForkReport{docs, reports})
	reversed := docs
	reversed.Changes = []diff.Action{docs.Changes[1], docs.Changes[0]}
	reversed.Untracked = []types.UntrackedItem{docs.Untracked[1], docs.Untracked[0]}
	second := RenderBody([]ForkReport{reports, reversed})
	assert.Equal(t, first, second)

	assert.Contains(t, first, "### `docs` ([Drive folder](https://drive.google.com/drive/folders/F1))")
	assert.Contains(t, first, "### `reports`\n\nNo changes.")
	assert.Contains(t, first, "#### Untracked items")
	assert.Contains(t, first, "[a](https://drive/U1)")
	assert.Contains(t, first, "failed: 403")
	assert.Less(t, strings.Index(first, "docs/a/brief--P1.pdf.link.json"), strings.Index(first, "docs/old--X.link.json"))
	assert.Less(t, strings.Index(first, "a.txt"), strings.Index(first, "z.txt"))
	assert.Less(t, strings.Index(first, "`docs`"), strings.Index(first, "`reports`"))
}
