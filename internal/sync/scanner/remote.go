package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// MaxDepth bounds folder recursion; deeper folders are reported and skipped.
const MaxDepth = 64

// RemoteScanner walks a remote folder tree.
type RemoteScanner struct {
	lister Lister
	sem    *semaphore.Weighted
	limit  int
	logger logging.Logger
}

// NewRemoteScanner creates a scanner issuing at most concurrency remote calls
// at a time. Calls past the cap wait for a slot, and each folder runs at most
// concurrency child tasks.
func NewRemoteScanner(lister Lister, concurrency int, logger logging.Logger) *RemoteScanner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &RemoteScanner{
		lister: lister,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		limit:  concurrency,
		logger: logger,
	}
}

// branchResult is what one folder scan contributes to the tree. Every branch
// owns its result; parents merge children after they finish.
type branchResult struct {
	files    map[string]types.RemoteItem
	folders  map[string]types.RemoteItem
	failures []types.ItemFailure
}

func newBranchResult() *branchResult {
	return &branchResult{
		files:   make(map[string]types.RemoteItem),
		folders: make(map[string]types.RemoteItem),
	}
}

func (b *branchResult) merge(other *branchResult) {
	mergeItems(b.files, other.files)
	mergeItems(b.folders, other.folders)
	b.failures = append(b.failures, other.failures...)
}

// mergeItems adds src into dst. An id reached through two parents keeps the
// lexicographically smaller path so the result does not depend on timing.
func mergeItems(dst, src map[string]types.RemoteItem) {
	for id, item := range src {
		if existing, ok := dst[id]; ok && existing.Path <= item.Path {
			continue
		}
		dst[id] = item
	}
}

// ListTree returns every file and folder below rootID. Failing to list the
// root is an error; failures below it are recorded in Tree.Failures.
func (s *RemoteScanner) ListTree(ctx context.Context, rootID string) (Tree, error) {
	if rootID == "" {
		return Tree{}, utils.NewValidationError(utils.ErrCodeInvalidArgument, "root folder id is required")
	}

	result, err := s.scanFolder(ctx, rootID, "", 0)
	if err != nil {
		return Tree{}, err
	}

	sort.Slice(result.failures, func(i, j int) bool {
		a, b := result.failures[i], result.failures[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Op < b.Op
	})

	s.logger.Debug("Remote tree listed",
		logging.F("root", rootID),
		logging.F("files", len(result.files)),
		logging.F("folders", len(result.folders)),
		logging.F("failures", len(result.failures)),
	)

	return Tree{
		Files:    result.files,
		Folders:  result.folders,
		Failures: result.failures,
	}, nil
}

func (s *RemoteScanner) scanFolder(ctx context.Context, folderID, prefix string, depth int) (*branchResult, error) {
	children, err := s.listAll(ctx, folderID)
	if err != nil {
		return nil, err
	}

	result := newBranchResult()
	var files, folders []types.RemoteItem

	for _, child := range children {
		if child.ID == "" || child.Name == "" {
			result.failures = append(result.failures, types.ItemFailure{
				ID:    child.ID,
				Path:  joinPath(prefix, child.Name),
				Op:    OpValidate,
				Error: "remote item is missing its id or name",
			})
			s.logger.Warn("Skipping remote item without id or name",
				logging.F("parent", folderID), logging.F("id", child.ID))
			continue
		}
		child.Path = joinPath(prefix, child.Name)
		if child.IsFolder {
			folders = append(folders, child)
		} else {
			files = append(files, child)
		}
	}

	perms := make([][]types.Permission, len(files))
	permErrs := make([]error, len(files))
	subtrees := make([]*branchResult, len(folders))
	subErrs := make([]error, len(folders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	for i := range files {
		g.Go(func() error {
			p, err := s.listPermissions(gctx, files[i].ID)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			perms[i], permErrs[i] = p, err
			return nil
		})
	}

	for i := range folders {
		if depth+1 >= MaxDepth {
			subErrs[i] = fmt.Errorf("folder depth exceeds %d", MaxDepth)
			continue
		}
		g.Go(func() error {
			sub, err := s.scanFolder(gctx, folders[i].ID, folders[i].Path, depth+1)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			subtrees[i], subErrs[i] = sub, err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, f := range files {
		if permErrs[i] != nil {
			s.logger.Warn("Permission fetch failed; continuing with no permissions",
				logging.F("id", f.ID), logging.F("path", f.Path), logging.F("error", permErrs[i].Error()))
			result.failures = append(result.failures, types.ItemFailure{
				ID: f.ID, Path: f.Path, Op: OpPermissions, Error: permErrs[i].Error(),
			})
		} else {
			f.Permissions = perms[i]
		}
		mergeItems(result.files, map[string]types.RemoteItem{f.ID: f})
	}

	for i, folder := range folders {
		mergeItems(result.folders, map[string]types.RemoteItem{folder.ID: folder})
		if subErrs[i] != nil {
			s.logger.Warn("Dropping subtree that could not be listed",
				logging.F("id", folder.ID), logging.F("path", folder.Path), logging.F("error", subErrs[i].Error()))
			result.failures = append(result.failures, types.ItemFailure{
				ID: folder.ID, Path: folder.Path, Op: OpList, Error: subErrs[i].Error(),
			})
			continue
		}
		result.merge(subtrees[i])
	}

	return result, nil
}

// listAll follows page tokens until the listing is exhausted. The semaphore
// is held per call only.
func (s *RemoteScanner) listAll(ctx context.Context, folderID string) ([]types.RemoteItem, error) {
	var items []types.RemoteItem
	seen := make(map[string]bool)
	token := ""
	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		page, err := s.lister.ListChildren(ctx, folderID, token)
		s.sem.Release(1)
		if err != nil {
			return nil, fmt.Errorf("list folder %s: %w", folderID, err)
		}
		items = append(items, page.Items...)

		if page.NextPageToken == "" {
			return items, nil
		}
		if seen[page.NextPageToken] {
			return nil, fmt.Errorf("list folder %s: page token %q repeated", folderID, page.NextPageToken)
		}
		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}
}

func (s *RemoteScanner) listPermissions(ctx context.Context, itemID string) ([]types.Permission, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	perms, err := s.lister.ListPermissions(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func joinPath(prefix, name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	if name == "." || name == ".." {
		name = strings.Repeat("_", len(name))
	}
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
