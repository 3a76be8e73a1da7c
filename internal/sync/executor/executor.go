package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/sync/classify"
	"github.com/dl-alexandre/drivemirror/internal/sync/diff"
	"github.com/dl-alexandre/drivemirror/internal/sync/sidecar"
	"github.com/dl-alexandre/drivemirror/internal/types"
)

// Remote is the slice of the storage client used to fetch content.
type Remote interface {
	Export(ctx context.Context, itemID, targetType string) (io.ReadCloser, error)
	Download(ctx context.Context, itemID string) (io.ReadCloser, error)
	Copy(ctx context.Context, itemID, newType, newName string) (string, error)
	Delete(ctx context.Context, itemID string) error
}

// PageRenderer turns a PDF into one image per page under outDir.
type PageRenderer interface {
	RenderPagesToImages(ctx context.Context, pdf []byte, outDir string, resolution int) ([]string, error)
}

// PagesSuffix is appended to a content file path to name its page directory.
const PagesSuffix = ".pages"

// Per-item failure operations
const (
	OpMaterialize = "materialize"
	OpRemove      = "remove"
	OpCleanup     = "cleanup"
	OpRender      = "render"
)

type Executor struct {
	fs          afero.Fs
	remote      Remote
	renderer    PageRenderer
	resolution  int
	itemTimeout time.Duration
	logger      logging.Logger
}

// Config holds the executor settings fixed for a run.
type Config struct {
	// ItemTimeout bounds one item once it has started; zero means the
	// per-call timeouts of the remote client are the only bound.
	ItemTimeout time.Duration
	// Renderer, when set, renders every written PDF at Resolution DPI.
	Renderer   PageRenderer
	Resolution int
}

type Options struct {
	Concurrency int
	DryRun      bool
}

type Summary struct {
	Materialized int `json:"materialized"`
	Removed      int `json:"removed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
}

// Outcome is the result of applying one fork's actions.
type Outcome struct {
	Summary  Summary             `json:"summary"`
	Failures []types.ItemFailure `json:"failures,omitempty"`
}

func New(fsys afero.Fs, remote Remote, cfg Config, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Executor{
		fs:          fsys,
		remote:      remote,
		renderer:    cfg.Renderer,
		resolution:  cfg.Resolution,
		itemTimeout: cfg.ItemTimeout,
		logger:      logger,
	}
}

// Apply runs actions against the fork rooted at root. Materializations run
// before removals so replaced artifacts disappear only once their successor
// exists. Per-item failures are collected, not returned. Cancelling ctx stops
// new items from starting; items already running finish.
func (e *Executor) Apply(ctx context.Context, root string, actions []diff.Action, opts Options) (Outcome, error) {
	if err := diff.Validate(actions); err != nil {
		return Outcome{}, err
	}

	var materialize, remove []diff.Action
	for _, a := range actions {
		switch a.Type {
		case diff.ActionMaterialize:
			materialize = append(materialize, a)
		case diff.ActionRemove:
			remove = append(remove, a)
		}
	}

	if opts.DryRun {
		return Outcome{Summary: Summary{Materialized: len(materialize), Removed: len(remove)}}, nil
	}

	var mu sync.Mutex
	out := Outcome{}
	record := func(a diff.Action, failures []types.ItemFailure) {
		mu.Lock()
		defer mu.Unlock()
		hard := false
		for _, f := range failures {
			if f.Op != OpRender && f.Op != OpCleanup {
				hard = true
			}
		}
		out.Failures = append(out.Failures, failures...)
		switch {
		case hard:
			out.Summary.Failed++
		case a.Type == diff.ActionMaterialize:
			out.Summary.Materialized++
		default:
			out.Summary.Removed++
		}
	}

	skipped := runConcurrent(ctx, materialize, opts.Concurrency, func(a diff.Action) {
		itemCtx, cancel := e.itemContext(ctx)
		defer cancel()
		record(a, e.materialize(itemCtx, root, a))
	})
	skipped += runConcurrent(ctx, remove, opts.Concurrency, func(a diff.Action) {
		var failures []types.ItemFailure
		if err := e.removeArtifact(root, a.Path); err != nil {
			failures = append(failures, types.ItemFailure{Path: a.Path, Op: OpRemove, Error: err.Error()})
		}
		record(a, failures)
	})
	out.Summary.Skipped = skipped

	sort.Slice(out.Failures, func(i, j int) bool {
		if out.Failures[i].Path != out.Failures[j].Path {
			return out.Failures[i].Path < out.Failures[j].Path
		}
		return out.Failures[i].Op < out.Failures[j].Op
	})
	return out, nil
}

// itemContext detaches a started item from run cancellation.
func (e *Executor) itemContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if e.itemTimeout > 0 {
		return context.WithTimeout(detached, e.itemTimeout)
	}
	return context.WithCancel(detached)
}

// runConcurrent feeds actions to a bounded worker pool and returns how many
// were never started because ctx was cancelled.
func runConcurrent(ctx context.Context, actions []diff.Action, concurrency int, handler func(diff.Action)) int {
	if len(actions) == 0 {
		return 0
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan diff.Action)
	var started atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range jobs {
				if ctx.Err() != nil {
					continue
				}
				started.Add(1)
				handler(action)
			}
		}()
	}

feed:
	for _, action := range actions {
		select {
		case jobs <- action:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return len(actions) - int(started.Load())
}

func (e *Executor) materialize(ctx context.Context, root string, a diff.Action) []types.ItemFailure {
	if a.Remote == nil {
		return []types.ItemFailure{{Path: a.Path, Op: OpMaterialize, Error: "materialize action without remote item"}}
	}
	item := *a.Remote
	fail := func(op string, err error) types.ItemFailure {
		e.logger.Warn("Item failed",
			logging.F("op", op), logging.F("id", item.ID), logging.F("path", a.Path), logging.F("error", err.Error()))
		return types.ItemFailure{ID: item.ID, Path: a.Path, Op: op, Error: err.Error()}
	}

	var failures []types.ItemFailure
	var data []byte
	if a.Strategy.HasContent() {
		content, cleanupErr, err := e.fetch(ctx, item, a.Strategy)
		if cleanupErr != nil {
			failures = append(failures, fail(OpCleanup, cleanupErr))
		}
		if err != nil {
			return append(failures, fail(OpMaterialize, err))
		}
		data = content
		if err := sidecar.WriteFileAtomic(e.fs, join(root, a.ContentPath), data); err != nil {
			return append(failures, fail(OpMaterialize, err))
		}
	}

	rec := sidecar.FromRemote(item, path.Base(a.ContentPath), item.ContentHash)
	if a.ContentPath == "" {
		rec.ContentFile = ""
	}
	if err := sidecar.Write(e.fs, join(root, a.Path), rec); err != nil {
		return append(failures, fail(OpMaterialize, err))
	}

	for _, old := range a.Replaces {
		if err := e.removeArtifact(root, old); err != nil {
			failures = append(failures, fail(OpRemove, fmt.Errorf("remove replaced %s: %w", old, err)))
		}
	}

	if data != nil && e.renderer != nil {
		pagesDir := join(root, a.ContentPath) + PagesSuffix
		if err := e.fs.RemoveAll(pagesDir); err != nil {
			failures = append(failures, fail(OpRender, err))
		} else if _, err := e.renderer.RenderPagesToImages(ctx, data, pagesDir, e.resolution); err != nil {
			failures = append(failures, fail(OpRender, err))
		}
	}

	e.logger.Debug("Materialized",
		logging.F("id", item.ID), logging.F("path", a.Path), logging.F("strategy", a.Strategy.Kind.String()))
	return failures
}

// fetch returns the content bytes for item. For ConvertThenExport the
// temporary copy is deleted whether or not the export succeeded; a failed
// deletion is returned separately as cleanupErr.
func (e *Executor) fetch(ctx context.Context, item types.RemoteItem, s classify.Strategy) (data []byte, cleanupErr error, err error) {
	switch s.Kind {
	case classify.DirectExport:
		data, err = readAll(e.remote.Export(ctx, item.ID, s.ExportType))
	case classify.DirectDownload:
		data, err = readAll(e.remote.Download(ctx, item.ID))
	case classify.ConvertThenExport:
		tmpName := fmt.Sprintf("%s (drivemirror %s)", item.Name, uuid.NewString()[:8])
		copyID, copyErr := e.remote.Copy(ctx, item.ID, s.IntermediateType, tmpName)
		if copyErr != nil {
			return nil, nil, fmt.Errorf("convert copy: %w", copyErr)
		}
		defer func() {
			cleanupErr = e.remote.Delete(context.WithoutCancel(ctx), copyID)
			if cleanupErr != nil {
				cleanupErr = fmt.Errorf("delete temporary copy %s: %w", copyID, cleanupErr)
			}
		}()
		data, err = readAll(e.remote.Export(ctx, copyID, s.ExportType))
	default:
		return nil, nil, fmt.Errorf("strategy %s has no content", s.Kind)
	}
	if err != nil {
		return nil, nil, err
	}

	if want := expectedType(item, s); want != "" {
		if detected := mimetype.Detect(data); !detected.Is(want) {
			return nil, nil, fmt.Errorf("expected %s content, got %s", want, detected.String())
		}
	}
	return data, nil, nil
}

func expectedType(item types.RemoteItem, s classify.Strategy) string {
	if s.Kind == classify.DirectDownload {
		return item.ContentType
	}
	return s.ExportType
}

func readAll(rc io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	data, readErr := io.ReadAll(rc)
	closeErr := rc.Close()
	if readErr != nil {
		return nil, readErr
	}
	return data, closeErr
}

// removeArtifact deletes p with its page directory and prunes directories
// left empty, stopping at root.
func (e *Executor) removeArtifact(root, p string) error {
	full := join(root, p)
	if err := e.fs.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if !sidecar.IsSidecar(p) {
		if err := e.fs.RemoveAll(full + PagesSuffix); err != nil {
			return err
		}
	}
	e.pruneEmptyDirs(root, path.Dir(full))
	return nil
}

func (e *Executor) pruneEmptyDirs(root, dir string) {
	root = path.Clean(root)
	for dir != root && strings.HasPrefix(dir, root+"/") {
		entries, err := afero.ReadDir(e.fs, dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := e.fs.Remove(dir); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

func join(root, rel string) string {
	return path.Join(root, rel)
}
