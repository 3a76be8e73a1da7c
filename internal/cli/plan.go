package cli

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a sync would change",
	Long: `Scan every configured Drive folder and the local mirror and print the
actions a sync would take. Nothing is written locally or on Drive.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	out := newOutput()
	ctx := cmd.Context()

	env, err := newRuntime(ctx)
	if err != nil {
		return out.Fail("plan", err)
	}
	defer env.Close()

	plan, err := env.engine.Plan(ctx, env.syncConfig)
	if err != nil {
		return out.Fail("plan", err)
	}

	out.Log("Plan: %s", describeSummary(plan.Summary()))
	for _, fp := range plan.Forks {
		if len(fp.Failures) > 0 {
			out.AddWarning("SCAN_SKIPPED", fp.Fork.Path+": some items could not be scanned", "warning")
		}
	}
	return out.WriteSuccess("plan", PlanView{Plan: plan})
}
