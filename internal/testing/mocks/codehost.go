package mocks

import (
	"context"
	"strconv"

	"github.com/dl-alexandre/drivemirror/internal/codehost"
)

// MockCodeHost is a Func-field mock of the pull request API. Unset funcs
// succeed: the default branch is "main", no pull requests exist, and create
// and update echo their input back as pull request 1.
type MockCodeHost struct {
	recorder

	GetDefaultBranchFunc  func(ctx context.Context, owner, repo string) (string, error)
	ListPullRequestsFunc  func(ctx context.Context, owner, repo string, opts codehost.ListOptions) ([]codehost.PullRequest, error)
	CreatePullRequestFunc func(ctx context.Context, owner, repo string, in codehost.NewPullRequest) (*codehost.PullRequest, error)
	UpdatePullRequestFunc func(ctx context.Context, owner, repo string, number int, in codehost.PullRequestUpdate) (*codehost.PullRequest, error)
}

func NewMockCodeHost() *MockCodeHost {
	return &MockCodeHost{}
}

func (m *MockCodeHost) GetDefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	m.record("GetDefaultBranch", owner, repo)
	if m.GetDefaultBranchFunc != nil {
		return m.GetDefaultBranchFunc(ctx, owner, repo)
	}
	return "main", nil
}

func (m *MockCodeHost) ListPullRequests(ctx context.Context, owner, repo string, opts codehost.ListOptions) ([]codehost.PullRequest, error) {
	m.record("ListPullRequests", owner, repo, opts.Head, opts.Base, opts.State)
	if m.ListPullRequestsFunc != nil {
		return m.ListPullRequestsFunc(ctx, owner, repo, opts)
	}
	return nil, nil
}

func (m *MockCodeHost) CreatePullRequest(ctx context.Context, owner, repo string, in codehost.NewPullRequest) (*codehost.PullRequest, error) {
	m.record("CreatePullRequest", owner, repo, in.Head, in.Base)
	if m.CreatePullRequestFunc != nil {
		return m.CreatePullRequestFunc(ctx, owner, repo, in)
	}
	return &codehost.PullRequest{Number: 1, Title: in.Title, Body: in.Body, Head: in.Head, Base: in.Base}, nil
}

func (m *MockCodeHost) UpdatePullRequest(ctx context.Context, owner, repo string, number int, in codehost.PullRequestUpdate) (*codehost.PullRequest, error) {
	m.record("UpdatePullRequest", owner, repo, strconv.Itoa(number), in.Base)
	if m.UpdatePullRequestFunc != nil {
		return m.UpdatePullRequestFunc(ctx, owner, repo, number, in)
	}
	return &codehost.PullRequest{Number: number, Title: in.Title, Body: in.Body, Base: in.Base}, nil
}
