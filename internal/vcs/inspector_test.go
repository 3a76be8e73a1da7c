package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	writeFile(t, dir, "README.md", "hello\n")
	writeFile(t, dir, "docs/a--1.link.json", "{}\n")

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)
	return dir
}

func TestInspector_CleanTree(t *testing.T) {
	dir := initRepo(t)
	in, err := OpenInspector(dir)
	require.NoError(t, err)

	changed, err := in.HasChanges("docs")
	require.NoError(t, err)
	assert.False(t, changed)

	branch, err := in.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestInspector_ChangesScopedToPrefixes(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "README.md", "changed\n")
	writeFile(t, dir, "docs/b--2.link.json", "{}\n")
	require.NoError(t, os.Remove(filepath.Join(dir, "docs", "a--1.link.json")))

	in, err := OpenInspector(dir)
	require.NoError(t, err)

	paths, err := in.ChangedPaths("docs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a--1.link.json", "docs/b--2.link.json"}, paths)

	other, err := in.HasChanges("reports")
	require.NoError(t, err)
	assert.False(t, other)

	all, err := in.ChangedPaths()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpenInspector_NotARepo(t *testing.T) {
	_, err := OpenInspector(t.TempDir())
	assert.Error(t, err)
}
