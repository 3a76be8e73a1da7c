package vcs

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Inspector reads working tree state without shelling out.
type Inspector struct {
	repo *git.Repository
}

// OpenInspector opens the repository containing dir.
func OpenInspector(dir string) (*Inspector, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return &Inspector{repo: repo}, nil
}

// ChangedPaths lists modified, added, deleted and untracked files below any
// of prefixes ("." or "" matches everything), sorted.
func (i *Inspector) ChangedPaths(prefixes ...string) ([]string, error) {
	wt, err := i.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}

	var changed []string
	for file, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		if underAny(file, prefixes) {
			changed = append(changed, file)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// HasChanges reports whether anything below prefixes differs from HEAD.
func (i *Inspector) HasChanges(prefixes ...string) (bool, error) {
	changed, err := i.ChangedPaths(prefixes...)
	if err != nil {
		return false, err
	}
	return len(changed) > 0, nil
}

// CurrentBranch returns the short name of the checked out branch.
func (i *Inspector) CurrentBranch() (string, error) {
	head, err := i.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash())
	}
	return head.Name().Short(), nil
}

func underAny(file string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		p = strings.TrimSuffix(path.Clean(p), "/")
		if p == "." || p == "" || file == p || strings.HasPrefix(file, p+"/") {
			return true
		}
	}
	return false
}
