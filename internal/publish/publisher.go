package publish

import (
	"context"
	"fmt"

	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/vcs"
)

// Git is the subset of vcs.Git the publisher needs.
type Git interface {
	CheckoutBranch(ctx context.Context, branch string) error
	AddAll(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string, author vcs.Author) error
	Push(ctx context.Context, branch string) error
}

// StatusChecker reports staged or unstaged changes below path prefixes.
type StatusChecker interface {
	HasChanges(prefixes ...string) (bool, error)
}

// Outcome is the result of Publish. Committed is false when the worktree was
// already clean; Result is nil when the protocol did not finish.
type Outcome struct {
	Committed bool
	Result    *Result
}

// URL returns the pull request link, or "".
func (o *Outcome) URL() string {
	if o == nil || o.Result == nil || o.Result.PullRequest == nil {
		return ""
	}
	return o.Result.PullRequest.URL
}

// Publisher commits the mirrored fork paths to the sync branch, pushes it and
// runs the Protocol.
type Publisher struct {
	git      Git
	status   StatusChecker
	protocol *Protocol
	logger   logging.Logger
}

func NewPublisher(git Git, status StatusChecker, protocol *Protocol, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Publisher{git: git, status: status, protocol: protocol, logger: logger}
}

// Publish stages every change under the configured fork paths, commits them
// when there are any, pushes the sync branch and runs the Protocol. A clean
// tree still pushes and runs the Protocol so a run that died after committing
// or pushing gets its pull request on the next attempt; when the branch holds
// nothing new the Protocol ends in NoChanges.
func (p *Publisher) Publish(ctx context.Context, cfg config.SyncConfig, reports []ForkReport) (*Outcome, error) {
	pub := cfg.Publish
	paths := cfg.ForkPaths()

	if err := p.git.CheckoutBranch(ctx, pub.Branch); err != nil {
		return nil, fmt.Errorf("checkout %s: %w", pub.Branch, err)
	}
	if err := p.git.AddAll(ctx, paths...); err != nil {
		return nil, fmt.Errorf("stage changes: %w", err)
	}

	changed, err := p.status.HasChanges(paths...)
	if err != nil {
		return nil, fmt.Errorf("inspect worktree: %w", err)
	}

	out := &Outcome{}
	if changed {
		author := vcs.Author{Name: pub.AuthorName, Email: pub.AuthorEmail}
		if err := p.git.Commit(ctx, pub.CommitMessage, author); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		out.Committed = true
	} else {
		p.logger.Info("Worktree clean, checking sync branch for an open pull request", logging.F("branch", pub.Branch))
	}

	if err := p.git.Push(ctx, pub.Branch); err != nil {
		return out, fmt.Errorf("push %s: %w", pub.Branch, err)
	}
	p.logger.Info("Pushed sync branch", logging.F("branch", pub.Branch), logging.F("committed", out.Committed))

	result, err := p.protocol.Run(ctx, Request{
		Owner:        cfg.Owner(),
		Repo:         cfg.RepoName(),
		Branch:       pub.Branch,
		FallbackBase: pub.Base,
		Title:        pub.Title,
		Body:         RenderBody(reports),
	})
	if err != nil {
		return out, err
	}
	out.Result = result
	return out, nil
}
