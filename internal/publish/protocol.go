// Package publish turns a committed mirror into an open pull request.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dl-alexandre/drivemirror/internal/codehost"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// CodeHost is the pull request API the protocol drives.
type CodeHost interface {
	GetDefaultBranch(ctx context.Context, owner, repo string) (string, error)
	ListPullRequests(ctx context.Context, owner, repo string, opts codehost.ListOptions) ([]codehost.PullRequest, error)
	CreatePullRequest(ctx context.Context, owner, repo string, in codehost.NewPullRequest) (*codehost.PullRequest, error)
	UpdatePullRequest(ctx context.Context, owner, repo string, number int, in codehost.PullRequestUpdate) (*codehost.PullRequest, error)
}

// State is a step of the publish protocol.
type State int

const (
	StateResolveBase State = iota
	StateCheckExisting
	StateUpdate
	StateCreate
	StateDone
	StateNoChanges
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolveBase:
		return "resolve_base"
	case StateCheckExisting:
		return "check_existing"
	case StateUpdate:
		return "update"
	case StateCreate:
		return "create"
	case StateDone:
		return "done"
	case StateNoChanges:
		return "no_changes"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) terminal() bool {
	return s == StateDone || s == StateNoChanges || s == StateFailed
}

// noCommitsMarker is how GitHub says head and base are identical.
const noCommitsMarker = "no commits between"

// Request describes the pull request to publish.
type Request struct {
	Owner  string
	Repo   string
	Branch string
	// FallbackBase is used when the default branch cannot be resolved.
	FallbackBase string
	Title        string
	Body         string
}

// Result is a successful outcome. PullRequest is nil for StateNoChanges.
type Result struct {
	State       State
	Base        string
	Created     bool
	PullRequest *codehost.PullRequest
}

// NoChanges reports that there was nothing to publish.
func (r *Result) NoChanges() bool {
	return r.State == StateNoChanges
}

// ProtocolOptions tunes the retry loop. Zero values take the defaults.
type ProtocolOptions struct {
	// Attempts is how many retryable failures are tolerated before giving up.
	Attempts     int
	InitialDelay time.Duration
}

// Protocol publishes idempotently: it updates the open pull request for the
// branch when one exists and opens one otherwise.
type Protocol struct {
	host         CodeHost
	attempts     int
	initialDelay time.Duration
	logger       logging.Logger
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewProtocol(host CodeHost, opts ProtocolOptions, logger logging.Logger) *Protocol {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if opts.Attempts <= 0 {
		opts.Attempts = utils.DefaultPublishAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Duration(utils.DefaultPublishInitialDelayMs) * time.Millisecond
	}
	return &Protocol{
		host:         host,
		attempts:     opts.Attempts,
		initialDelay: opts.InitialDelay,
		logger:       logger,
		sleep:        sleepContext,
	}
}

// run is the mutable state of one Run.
type run struct {
	req      Request
	state    State
	base     string
	existing *codehost.PullRequest
	pr       *codehost.PullRequest
	created  bool
	failures int
	delay    time.Duration
	err      error
}

// Run drives the state machine to a terminal state.
func (p *Protocol) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Owner == "" || req.Repo == "" || req.Branch == "" {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidArgument, "publish needs owner, repo and branch")
	}

	r := &run{req: req, state: StateResolveBase, delay: p.initialDelay}
	for !r.state.terminal() {
		next := p.step(ctx, r)
		p.logger.Debug("Publish transition",
			logging.F("from", r.state.String()),
			logging.F("to", next.String()))
		r.state = next
	}

	if r.state == StateFailed {
		return nil, r.err
	}
	return &Result{State: r.state, Base: r.base, Created: r.created, PullRequest: r.pr}, nil
}

func (p *Protocol) step(ctx context.Context, r *run) State {
	req := r.req
	switch r.state {
	case StateResolveBase:
		base, err := p.host.GetDefaultBranch(ctx, req.Owner, req.Repo)
		if err != nil {
			if ctx.Err() != nil {
				r.err = ctx.Err()
				return StateFailed
			}
			if req.FallbackBase == "" {
				r.err = err
				return StateFailed
			}
			p.logger.Warn("Could not resolve default branch, using fallback",
				logging.F("fallback", req.FallbackBase),
				logging.F("error", err.Error()))
			base = req.FallbackBase
		}
		r.base = base
		return StateCheckExisting

	case StateCheckExisting:
		prs, err := p.host.ListPullRequests(ctx, req.Owner, req.Repo, codehost.ListOptions{
			Head:  req.Owner + ":" + req.Branch,
			Base:  r.base,
			State: "open",
		})
		if err != nil {
			return p.retry(ctx, r, "list pull requests", err)
		}
		if len(prs) > 0 {
			r.existing = &prs[0]
			return StateUpdate
		}
		return StateCreate

	case StateUpdate:
		pr, err := p.host.UpdatePullRequest(ctx, req.Owner, req.Repo, r.existing.Number, codehost.PullRequestUpdate{
			Title: req.Title,
			Body:  req.Body,
			Base:  r.base,
		})
		if err != nil {
			return p.retry(ctx, r, "update pull request", err)
		}
		r.pr = pr
		return StateDone

	case StateCreate:
		pr, err := p.host.CreatePullRequest(ctx, req.Owner, req.Repo, codehost.NewPullRequest{
			Title: req.Title,
			Body:  req.Body,
			Head:  req.Branch,
			Base:  r.base,
		})
		if err != nil {
			return p.retry(ctx, r, "create pull request", err)
		}
		r.pr = pr
		r.created = true
		return StateDone
	}

	r.err = utils.NewAppError(utils.NewCLIError(utils.ErrCodeInternalError,
		fmt.Sprintf("publish stepped from terminal state %s", r.state)).Build())
	return StateFailed
}

// retry decides where a failed CheckExisting, Update or Create goes next.
func (p *Protocol) retry(ctx context.Context, r *run, operation string, err error) State {
	if IsNoCommitsBetween(err) {
		p.logger.Info("Nothing to publish", logging.F("branch", r.req.Branch), logging.F("base", r.base))
		return StateNoChanges
	}
	if ctx.Err() != nil {
		r.err = ctx.Err()
		return StateFailed
	}
	if !isRetryable(err) {
		r.err = fatal(operation, err)
		return StateFailed
	}

	r.failures++
	if r.failures >= p.attempts {
		r.err = utils.WrapAppError(utils.NewCLIError(utils.ErrCodePublishFailed,
			fmt.Sprintf("%s failed after %d attempts: %s", operation, r.failures, upstreamMessage(err))).
			WithOperation(operation).
			WithHTTPStatus(utils.HTTPStatus(err)).
			Build(), err)
		return StateFailed
	}

	p.logger.Warn("Publish step failed, retrying",
		logging.F("operation", operation),
		logging.F("httpStatus", utils.HTTPStatus(err)),
		logging.F("attempt", r.failures),
		logging.F("delay_ms", r.delay.Milliseconds()),
		logging.F("error", err.Error()))
	if err := p.sleep(ctx, r.delay); err != nil {
		r.err = err
		return StateFailed
	}
	r.delay *= 2
	return StateCheckExisting
}

// IsNoCommitsBetween reports the 422 GitHub returns when head has nothing
// that base lacks.
func IsNoCommitsBetween(err error) bool {
	return utils.HTTPStatus(err) == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(err.Error()), noCommitsMarker)
}

// isRetryable covers the statuses seen while a freshly pushed branch
// propagates: 403, 404 and 422.
func isRetryable(err error) bool {
	switch utils.HTTPStatus(err) {
	case http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func fatal(operation string, err error) error {
	if _, ok := utils.AsAppError(err); ok {
		return err
	}
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodePublishFailed,
		fmt.Sprintf("%s: %v", operation, err)).
		WithOperation(operation).
		Build(), err)
}

func upstreamMessage(err error) string {
	if appErr, ok := utils.AsAppError(err); ok {
		return appErr.CLIError.Message
	}
	return err.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
