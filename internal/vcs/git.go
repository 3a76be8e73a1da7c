package vcs

import (
	"context"
	"strings"
)

// Git drives the git CLI in one working tree.
type Git struct {
	exec Executor
	dir  string
}

func NewGit(exec Executor, dir string) *Git {
	return &Git{exec: exec, dir: dir}
}

// Author identifies the commit author.
type Author struct {
	Name  string
	Email string
}

func (g *Git) run(ctx context.Context, args ...string) (*Result, error) {
	return g.exec.Execute(ctx, "git", args, Options{Dir: g.dir})
}

// CheckoutBranch creates or resets branch at the current HEAD and checks it out.
func (g *Git) CheckoutBranch(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", "-B", branch)
	return err
}

// AddAll stages every change under paths, deletions included.
func (g *Git) AddAll(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "-A", "--"}, paths...)
	_, err := g.run(ctx, args...)
	return err
}

// Commit records the staged changes.
func (g *Git) Commit(ctx context.Context, message string, author Author) error {
	args := []string{}
	if author.Name != "" {
		args = append(args, "-c", "user.name="+author.Name)
	}
	if author.Email != "" {
		args = append(args, "-c", "user.email="+author.Email)
	}
	args = append(args, "commit", "-m", message)
	_, err := g.run(ctx, args...)
	return err
}

// Push pushes branch to origin, replacing the remote branch only when it
// still points where this clone last saw it.
func (g *Git) Push(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "push", "--force-with-lease", "origin", branch)
	return err
}

// HeadCommit returns the full hash of HEAD.
func (g *Git) HeadCommit(ctx context.Context) (string, error) {
	res, err := g.exec.Execute(ctx, "git", []string{"rev-parse", "HEAD"}, Options{Dir: g.dir, Silent: true})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
