package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/sync/exclude"
	"github.com/dl-alexandre/drivemirror/internal/types"
)

// LocalMatcher builds the ignore matcher for a repository: configured
// patterns plus the translated root .gitignore when present.
func LocalMatcher(fsys afero.Fs, repoRoot string, ignore []string, logger logging.Logger) (*exclude.Matcher, error) {
	patterns := append([]string{}, ignore...)
	data, err := afero.ReadFile(fsys, filepath.Join(repoRoot, ".gitignore"))
	switch {
	case err == nil:
		patterns = append(patterns, exclude.FromGitignore(data, logger)...)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}
	return exclude.New(patterns)
}

// ScanLocal hashes every regular file under root that the matcher does not
// exclude. Keys are forward-slash paths relative to root. Symlinks are not
// followed. Unreadable files are skipped with a warning; failing to walk root
// itself is an error.
func ScanLocal(ctx context.Context, fsys afero.Fs, root string, matcher *exclude.Matcher, logger logging.Logger) (map[string]types.LocalItem, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	items := make(map[string]types.LocalItem)

	if _, err := fsys.Stat(root); errors.Is(err, os.ErrNotExist) {
		return items, nil
	}

	err := afero.Walk(fsys, root, func(current string, info os.FileInfo, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			if current == root {
				return walkErr
			}
			logger.Warn("Skipping unreadable path", logging.F("path", current), logging.F("error", walkErr.Error()))
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = path.Clean(filepath.ToSlash(rel))

		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if matcher.IsExcluded(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		hash, err := HashFile(fsys, current)
		if err != nil {
			logger.Warn("Skipping unreadable file", logging.F("path", rel), logging.F("error", err.Error()))
			return nil
		}
		items[rel] = types.LocalItem{RelativePath: rel, Hash: hash}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return items, nil
}
