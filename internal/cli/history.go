package cli

import (
	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivemirror/internal/sync/ledger"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync runs",
	Long:  "List runs recorded in the ledger. Requires ledgerPath to be configured.",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := newOutput()

	if runtimeConfig.LedgerPath == "" {
		return out.Fail("history", utils.NewValidationError(utils.ErrCodeInvalidConfig,
			"no ledger configured: run 'drivemirror config set ledgerPath <file>'"))
	}
	if historyLimit <= 0 {
		return out.Fail("history", utils.NewValidationError(utils.ErrCodeInvalidArgument, "--limit must be positive"))
	}

	db, err := ledger.Open(runtimeConfig.LedgerPath)
	if err != nil {
		return out.Fail("history", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return out.Fail("history", err)
	}
	return out.WriteSuccess("history", HistoryView{Runs: runs})
}
