// Package sync plans and applies a Drive mirror for every configured fork.
package sync

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/sync/diff"
	"github.com/dl-alexandre/drivemirror/internal/sync/exclude"
	"github.com/dl-alexandre/drivemirror/internal/sync/executor"
	"github.com/dl-alexandre/drivemirror/internal/sync/ledger"
	"github.com/dl-alexandre/drivemirror/internal/sync/scanner"
	"github.com/dl-alexandre/drivemirror/internal/sync/sidecar"
	"github.com/dl-alexandre/drivemirror/internal/sync/untracked"
	"github.com/dl-alexandre/drivemirror/internal/types"
)

// Remote is every storage operation a run needs.
type Remote interface {
	scanner.Lister
	executor.Remote
	untracked.Remote
}

// Options configures an Engine.
type Options struct {
	// RepoRoot is the git working tree; fork paths are relative to it.
	RepoRoot string
	// ServiceIdentity receives ownership transfer requests.
	ServiceIdentity       string
	Concurrency           int
	PermissionConcurrency int
	ItemTimeout           time.Duration
	Renderer              executor.PageRenderer
	Resolution            int
}

type Engine struct {
	fs       afero.Fs
	ledger   *ledger.DB
	scanner  *scanner.RemoteScanner
	executor *executor.Executor
	resolver *untracked.Resolver
	opts     Options
	logger   logging.Logger
}

// NewEngine wires the run components. db may be nil to skip the ledger.
func NewEngine(fsys afero.Fs, remote Remote, db *ledger.DB, opts Options, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Engine{
		fs:      fsys,
		ledger:  db,
		scanner: scanner.NewRemoteScanner(remote, opts.PermissionConcurrency, logger),
		executor: executor.New(fsys, remote, executor.Config{
			ItemTimeout: opts.ItemTimeout,
			Renderer:    opts.Renderer,
			Resolution:  opts.Resolution,
		}, logger),
		resolver: untracked.NewResolver(remote, opts.ServiceIdentity, logger),
		opts:     opts,
		logger:   logger,
	}
}

// ForkPlan is the reconciliation of one fork.
type ForkPlan struct {
	Fork config.ForkConfig `json:"fork"`
	// Root is the fork's directory on disk.
	Root   string      `json:"root"`
	Result diff.Result `json:"result"`
	// Failures are items the remote scan had to skip.
	Failures []types.ItemFailure `json:"failures,omitempty"`
}

type Plan struct {
	Forks []ForkPlan `json:"forks"`
}

// Summary totals the actions of every fork.
func (p *Plan) Summary() diff.Summary {
	var total diff.Summary
	for _, f := range p.Forks {
		s := f.Result.Summary()
		total.Materialize += s.Materialize
		total.Remove += s.Remove
		total.NoOp += s.NoOp
	}
	return total
}

// HasChanges reports whether applying the plan would touch disk or Drive.
func (p *Plan) HasChanges() bool {
	for _, f := range p.Forks {
		if len(f.Result.Changes()) > 0 || len(f.Result.Untracked) > 0 {
			return true
		}
	}
	return false
}

// Owned is the tracking rule. Every remote file is mirrored; files the
// service identity does not own are also handed to the fork's untracked
// policy.
func Owned(item types.RemoteItem) bool {
	return item.OwnedByServiceIdentity
}

// Plan scans and reconciles every fork. Nothing is written.
func (e *Engine) Plan(ctx context.Context, cfg config.SyncConfig) (*Plan, error) {
	matcher, err := scanner.LocalMatcher(e.fs, e.opts.RepoRoot, cfg.Ignore, e.logger)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, fork := range cfg.Targets.Forks {
		fp, err := e.planFork(ctx, fork, matcher)
		if err != nil {
			return nil, err
		}
		plan.Forks = append(plan.Forks, fp)
	}
	return plan, nil
}

func (e *Engine) planFork(ctx context.Context, fork config.ForkConfig, matcher *exclude.Matcher) (ForkPlan, error) {
	root := filepath.Join(e.opts.RepoRoot, filepath.FromSlash(fork.Path))
	logger := e.logger.WithContext(ctx)

	var (
		local map[string]types.LocalItem
		tree  scanner.Tree
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		local, err = scanner.ScanLocal(gctx, e.fs, root, matcher, logger)
		return err
	})
	g.Go(func() error {
		var err error
		tree, err = e.scanner.ListTree(gctx, fork.DriveFolderID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ForkPlan{}, err
	}

	unlisted, unresolved := scanGaps(tree.Failures)
	result := diff.Compute(diff.Snapshot{
		Remote:        tree.Files,
		Local:         local,
		Sidecars:      e.loadSidecars(root, local, tree.Files),
		Owned:         Owned,
		HoldUntracked: fork.OnUntrack == config.UntrackRemove,
		Unlisted:      unlisted,
		Unresolved:    unresolved,
	})

	summary := result.Summary()
	logger.Info("Fork planned",
		logging.F("fork", fork.Path),
		logging.F("folder", fork.DriveFolderID),
		logging.F("materialize", summary.Materialize),
		logging.F("remove", summary.Remove),
		logging.F("noop", summary.NoOp),
		logging.F("untracked", len(result.Untracked)),
		logging.F("scanFailures", len(tree.Failures)),
	)
	return ForkPlan{Fork: fork, Root: root, Result: result, Failures: tree.Failures}, nil
}

// scanGaps returns the folders the scan could not list and the ids it could
// not resolve. Reconciliation must not read their absence as deletion.
func scanGaps(failures []types.ItemFailure) (unlisted []string, unresolved map[string]bool) {
	unresolved = make(map[string]bool)
	for _, f := range failures {
		switch f.Op {
		case scanner.OpList:
			unlisted = append(unlisted, f.Path)
		case scanner.OpValidate:
			if f.ID != "" {
				unresolved[f.ID] = true
			}
		}
	}
	sort.Strings(unlisted)
	return unlisted, unresolved
}

// loadSidecars decodes every sidecar in local. A sidecar that cannot be read
// still claims its id through the file name so the item is not duplicated;
// names that split more than one way prefer an id still in remote.
func (e *Engine) loadSidecars(root string, local map[string]types.LocalItem, remote map[string]types.RemoteItem) map[string]sidecar.Record {
	known := func(id string) bool {
		_, ok := remote[id]
		return ok
	}
	records := make(map[string]sidecar.Record)
	for rel := range local {
		name := path.Base(rel)
		if !sidecar.IsSidecar(name) {
			continue
		}
		rec, err := sidecar.Read(e.fs, filepath.Join(root, filepath.FromSlash(rel)))
		if err == nil {
			records[rel] = rec
			continue
		}
		id, ok := sidecar.ParseName(name, known)
		if !ok {
			e.logger.Warn("Ignoring unreadable sidecar", logging.F("path", rel), logging.F("error", err.Error()))
			continue
		}
		e.logger.Warn("Sidecar unreadable, using id from file name",
			logging.F("path", rel), logging.F("id", id), logging.F("error", err.Error()))
		records[rel] = sidecar.Record{ID: id}
	}
	return records
}

// ForkReport is what applying one fork did.
type ForkReport struct {
	Fork      config.ForkConfig     `json:"fork"`
	Changes   []diff.Action         `json:"changes"`
	Untracked []types.UntrackedItem `json:"untracked"`
	Outcome   executor.Outcome      `json:"outcome"`
	Failures  []types.ItemFailure   `json:"failures,omitempty"`
}

// Report is the result of Apply.
type Report struct {
	RunID     string           `json:"runId"`
	Status    string           `json:"status"`
	Forks     []ForkReport     `json:"forks"`
	Summary   executor.Summary `json:"summary"`
	StartedAt time.Time        `json:"startedAt"`
}

// UntrackedCount totals untracked items across forks.
func (r *Report) UntrackedCount() int {
	n := 0
	for _, f := range r.Forks {
		n += len(f.Untracked)
	}
	return n
}

// Apply resolves untracked items and then materializes and removes
// artifacts, fork by fork. Per-item failures land in the report. Once ctx is
// cancelled no new item starts and the remaining forks are skipped.
func (e *Engine) Apply(ctx context.Context, cfg config.SyncConfig, plan *Plan) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Status:    ledger.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	ctx = logging.ContextWithTraceID(ctx, report.RunID)
	logger := e.logger.WithContext(ctx)

	if e.ledger != nil {
		if err := e.ledger.StartRun(ctx, ledger.Run{
			ID:        report.RunID,
			Repo:      cfg.Source.Repo,
			Mode:      "sync",
			Status:    ledger.StatusRunning,
			StartedAt: report.StartedAt.Unix(),
		}); err != nil {
			return nil, err
		}
	}

	for _, fp := range plan.Forks {
		changes := fp.Result.Changes()
		fr := ForkReport{Fork: fp.Fork, Changes: changes, Failures: append([]types.ItemFailure(nil), fp.Failures...)}
		fr.Untracked = e.resolver.Resolve(ctx, fp.Fork.OnUntrack, fp.Result.Untracked)

		if ctx.Err() != nil {
			fr.Outcome.Summary.Skipped = len(changes)
		} else {
			outcome, err := e.executor.Apply(ctx, fp.Root, changes, executor.Options{Concurrency: e.opts.Concurrency})
			if err != nil {
				e.finishLedger(ctx, report, "", err)
				return nil, err
			}
			fr.Outcome = outcome
			fr.Failures = append(fr.Failures, outcome.Failures...)
		}
		report.add(fr)

		if e.ledger != nil {
			if err := e.ledger.RecordUntracked(context.WithoutCancel(ctx), report.RunID, fp.Fork.DriveFolderID, fr.Untracked); err != nil {
				logger.Warn("Failed to record untracked items", logging.F("error", err.Error()))
			}
		}
		logger.Info("Fork applied",
			logging.F("fork", fp.Fork.Path),
			logging.F("materialized", fr.Outcome.Summary.Materialized),
			logging.F("removed", fr.Outcome.Summary.Removed),
			logging.F("failed", fr.Outcome.Summary.Failed),
			logging.F("skipped", fr.Outcome.Summary.Skipped),
		)
	}

	switch {
	case ctx.Err() != nil:
		report.Status = ledger.StatusCancelled
	case report.Summary.Failed > 0:
		report.Status = ledger.StatusPartial
	default:
		report.Status = ledger.StatusSucceeded
	}
	return report, nil
}

func (r *Report) add(fr ForkReport) {
	sort.Slice(fr.Failures, func(i, j int) bool {
		if fr.Failures[i].Path != fr.Failures[j].Path {
			return fr.Failures[i].Path < fr.Failures[j].Path
		}
		return fr.Failures[i].Op < fr.Failures[j].Op
	})
	r.Forks = append(r.Forks, fr)
	r.Summary.Materialized += fr.Outcome.Summary.Materialized
	r.Summary.Removed += fr.Outcome.Summary.Removed
	r.Summary.Failed += fr.Outcome.Summary.Failed
	r.Summary.Skipped += fr.Outcome.Summary.Skipped
}

// Finish closes the run in the ledger with the publish outcome. runErr, when
// set, marks the run failed.
func (e *Engine) Finish(ctx context.Context, report *Report, prURL string, runErr error) {
	e.finishLedger(ctx, report, prURL, runErr)
}

func (e *Engine) finishLedger(ctx context.Context, report *Report, prURL string, runErr error) {
	if e.ledger == nil || report == nil {
		return
	}
	run := ledger.Run{
		ID:           report.RunID,
		Status:       report.Status,
		FinishedAt:   time.Now().UTC().Unix(),
		Materialized: report.Summary.Materialized,
		Removed:      report.Summary.Removed,
		Failed:       report.Summary.Failed,
		Untracked:    report.UntrackedCount(),
		PRURL:        prURL,
	}
	if runErr != nil {
		run.Status = ledger.StatusFailed
		if errors.Is(runErr, context.Canceled) {
			run.Status = ledger.StatusCancelled
		}
		run.Error = runErr.Error()
	}
	if err := e.ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Warn("Failed to finish ledger run", logging.F("run", report.RunID), logging.F("error", err.Error()))
	}
}
