// Package codehost talks to the GitHub pull request API.
package codehost

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/dl-alexandre/drivemirror/internal/errors"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
	"github.com/dl-alexandre/drivemirror/pkg/version"
)

const (
	// DefaultTimeout bounds every GitHub request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond stays well inside the authenticated REST quota.
	DefaultRequestsPerSecond = 5

	perPage = 100
)

// Options configures a Client.
type Options struct {
	Token string
	// BaseURL overrides https://api.github.com/, mainly for GitHub Enterprise.
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Debug             *logging.DebugTransport
}

// PullRequest is the subset of a GitHub pull request the publisher needs.
type PullRequest struct {
	Number int
	URL    string
	Title  string
	Body   string
	Head   string
	Base   string
}

// ListOptions filters ListPullRequests. Head is "owner:branch".
type ListOptions struct {
	Head  string
	Base  string
	State string
}

// NewPullRequest opens a pull request from Head into Base.
type NewPullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// PullRequestUpdate edits an existing pull request. The head branch is never
// changed.
type PullRequestUpdate struct {
	Title string
	Body  string
	Base  string
}

// Client wraps go-github with pacing and error classification.
type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewClient builds an authenticated client.
func NewClient(opts Options, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired, "GitHub token is empty").
			WithContext("suggestedAction", "run 'drivemirror auth set-github-token' or set GITHUB_TOKEN").
			Build())
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = opts.Timeout
	if tc.Timeout == 0 {
		tc.Timeout = DefaultTimeout
	}
	if opts.Debug != nil {
		tc.Transport = opts.Debug.Wrap(tc.Transport)
	}

	client := gh.NewClient(tc)
	client.UserAgent = version.UserAgent()
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, utils.NewValidationError(utils.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid GitHub base URL %q: %v", opts.BaseURL, err))
		}
		client.BaseURL = u
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return &Client{
		gh:      client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps))),
		logger:  logger,
	}, nil
}

func (c *Client) wait(ctx context.Context, operation string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.classify(ctx, operation, err)
	}
	return nil
}

func (c *Client) classify(ctx context.Context, operation string, err error) error {
	reqCtx := &types.RequestContext{
		TraceID:     logging.TraceIDFromContext(ctx),
		RequestType: types.RequestTypeCodeHost,
	}
	return errors.ClassifyGitHubError(operation, err, reqCtx, c.logger)
}

// GetDefaultBranch returns the repository's default branch name.
func (c *Client) GetDefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	const op = "get default branch"
	if err := c.wait(ctx, op); err != nil {
		return "", err
	}
	r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", c.classify(ctx, op, err)
	}
	branch := r.GetDefaultBranch()
	if branch == "" {
		return "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeUnknown,
			fmt.Sprintf("%s/%s reports no default branch", owner, repo)).
			WithOperation(op).
			Build())
	}
	return branch, nil
}

// ListPullRequests returns every pull request matching opts, following
// pagination until GitHub reports no next page.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, opts ListOptions) ([]PullRequest, error) {
	const op = "list pull requests"
	state := opts.State
	if state == "" {
		state = "open"
	}
	listOpts := &gh.PullRequestListOptions{
		State:       state,
		Head:        opts.Head,
		Base:        opts.Base,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var out []PullRequest
	for {
		if err := c.wait(ctx, op); err != nil {
			return nil, err
		}
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, listOpts)
		if err != nil {
			return nil, c.classify(ctx, op, err)
		}
		for _, pr := range prs {
			out = append(out, fromGitHub(pr))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}
	return out, nil
}

// CreatePullRequest opens a pull request.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, in NewPullRequest) (*PullRequest, error) {
	const op = "create pull request"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.Ptr(in.Title),
		Body:  gh.Ptr(in.Body),
		Head:  gh.Ptr(in.Head),
		Base:  gh.Ptr(in.Base),
	})
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}
	out := fromGitHub(pr)
	c.logger.Info("Pull request created", logging.F("number", out.Number), logging.F("url", out.URL))
	return &out, nil
}

// UpdatePullRequest edits title, body and base of pull request number.
func (c *Client) UpdatePullRequest(ctx context.Context, owner, repo string, number int, in PullRequestUpdate) (*PullRequest, error) {
	const op = "update pull request"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	edit := &gh.PullRequest{
		Title: gh.Ptr(in.Title),
		Body:  gh.Ptr(in.Body),
	}
	if in.Base != "" {
		edit.Base = &gh.PullRequestBranch{Ref: gh.Ptr(in.Base)}
	}
	pr, _, err := c.gh.PullRequests.Edit(ctx, owner, repo, number, edit)
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}
	out := fromGitHub(pr)
	c.logger.Info("Pull request updated", logging.F("number", out.Number), logging.F("url", out.URL))
	return &out, nil
}

func fromGitHub(pr *gh.PullRequest) PullRequest {
	return PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		Title:  pr.GetTitle(),
		Body:   pr.GetBody(),
		Head:   pr.GetHead().GetRef(),
		Base:   pr.GetBase().GetRef(),
	}
}
