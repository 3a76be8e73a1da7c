package mocks

import (
	"context"

	"github.com/dl-alexandre/drivemirror/internal/vcs"
)

// MockExecutor records commands instead of running them. Each call is
// recorded under the command name with its args.
type MockExecutor struct {
	recorder

	ExecuteFunc func(ctx context.Context, name string, args []string, opts vcs.Options) (*vcs.Result, error)
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args []string, opts vcs.Options) (*vcs.Result, error) {
	m.record(name, args...)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, name, args, opts)
	}
	return &vcs.Result{}, nil
}
