package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivemirror/internal/auth"
	"github.com/dl-alexandre/drivemirror/internal/codehost"
	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/publish"
	"github.com/dl-alexandre/drivemirror/internal/sync"
	"github.com/dl-alexandre/drivemirror/internal/utils"
	"github.com/dl-alexandre/drivemirror/internal/vcs"
)

// githubAPIURLEnv is set by GitHub Actions, including on Enterprise Server.
const githubAPIURLEnv = "GITHUB_API_URL"

var syncNoPublish bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror Drive folders and publish a pull request",
	Long: `Apply the plan to the working tree, resolve untracked items according to
each fork's on_untrack policy, then commit the fork paths to the sync branch,
push it and open or update the pull request.

Interrupting the run lets items already in flight finish; nothing new starts.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncNoPublish, "no-publish", false, "Apply changes locally without committing or opening a pull request")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	out := newOutput()
	ctx := cmd.Context()

	env, err := newRuntime(ctx)
	if err != nil {
		return out.Fail("sync", err)
	}
	defer env.Close()

	plan, err := env.engine.Plan(ctx, env.syncConfig)
	if err != nil {
		return out.Fail("sync", err)
	}
	out.Verbose("Plan: %s", describeSummary(plan.Summary()))

	report, err := env.engine.Apply(ctx, env.syncConfig, plan)
	if err != nil {
		return out.Fail("sync", err)
	}

	view := SyncView{Report: report, Published: "skipped"}
	if ctx.Err() != nil {
		env.engine.Finish(ctx, report, "", ctx.Err())
		_ = out.WriteSuccess("sync", view)
		return out.Fail("sync", utils.WrapAppError(
			utils.NewCLIError(utils.ErrCodeCancelled, "sync interrupted").Build(), ctx.Err()))
	}

	if !syncNoPublish {
		outcome, pubErr := publishReport(ctx, env, report)
		env.engine.Finish(ctx, report, outcome.URL(), pubErr)
		if pubErr != nil {
			return out.Fail("sync", pubErr)
		}
		view.Published = publishState(outcome)
		view.PullRequest = outcome.URL()
	} else {
		env.engine.Finish(ctx, report, "", nil)
	}

	if report.Summary.Failed > 0 {
		out.AddWarning(utils.ErrCodeBatchPartialFailure, "some items failed; see the log for details", "warning")
	}
	if view.PullRequest != "" {
		out.Log("Pull request: %s", view.PullRequest)
	}
	return out.WriteSuccess("sync", view)
}

// publishReport commits and pushes the fork paths and runs the publish
// protocol against the configured repository.
func publishReport(ctx context.Context, env *runtimeEnv, report *sync.Report) (*publish.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout(runtimeConfig))
	defer cancel()

	token, err := auth.NewManager(configDir()).GitHubToken()
	if err != nil {
		if errors.Is(err, auth.ErrSecretNotFound) {
			return nil, utils.NewValidationError(utils.ErrCodeAuthRequired,
				"GitHub token required: set GITHUB_TOKEN or run 'drivemirror auth set-github-token'")
		}
		return nil, err
	}

	host, err := codehost.NewClient(codehost.Options{
		Token:   token,
		BaseURL: os.Getenv(githubAPIURLEnv),
		Timeout: runtimeConfig.GetRequestTimeout(),
		Debug:   debugTransport,
	}, logger)
	if err != nil {
		return nil, err
	}

	inspector, err := vcs.OpenInspector(env.repoRoot)
	if err != nil {
		return nil, err
	}
	git := vcs.NewGit(vcs.NewCommandExecutor(logger), env.repoRoot)
	protocol := publish.NewProtocol(host, publish.ProtocolOptions{}, logger)
	publisher := publish.NewPublisher(git, inspector, protocol, logger)

	outcome, err := publisher.Publish(ctx, env.syncConfig, forkReports(report))
	if err != nil {
		logger.Error("Publish failed", logging.F("error", err.Error()))
		return outcome, err
	}
	return outcome, nil
}

// forkReports converts a run report into the per-fork sections of the pull
// request body.
func forkReports(report *sync.Report) []publish.ForkReport {
	reports := make([]publish.ForkReport, 0, len(report.Forks))
	for _, fr := range report.Forks {
		reports = append(reports, publish.ForkReport{
			Path:      fr.Fork.Path,
			DriveURL:  fr.Fork.DriveURL,
			Changes:   fr.Changes,
			Untracked: fr.Untracked,
			Failures:  fr.Failures,
		})
	}
	return reports
}

func publishState(o *publish.Outcome) string {
	switch {
	case o == nil || (o.Result == nil && !o.Committed):
		return "clean"
	case o.Result == nil:
		return "pushed"
	case o.Result.State == publish.StateDone && o.Result.Created:
		return "created"
	case o.Result.State == publish.StateDone:
		return "updated"
	default:
		return o.Result.State.String()
	}
}

func configDir() string {
	dir, err := config.GetConfigDir()
	if err != nil {
		return ""
	}
	return dir
}
