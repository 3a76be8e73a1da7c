package cli

import (
	"github.com/spf13/cobra"
)

var validateRemote bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the sync config and credentials",
	Long: `Load and validate the sync config without touching Drive or git. With
--remote, also authenticate the service account and check that every fork
folder can be listed.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateRemote, "remote", false, "Also check credentials and folder access against Drive")
	rootCmd.AddCommand(validateCmd)
}

type validateResult struct {
	Repo            string   `json:"repo"`
	Forks           []string `json:"forks"`
	ServiceIdentity string   `json:"serviceIdentity,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := newOutput()
	ctx := cmd.Context()

	cfg, _, err := loadSyncConfig()
	if err != nil {
		return out.Fail("validate", err)
	}
	result := validateResult{Repo: cfg.Source.Repo, Forks: cfg.ForkPaths()}

	if validateRemote {
		_, client, err := driveClient(ctx, runtimeConfig)
		if err != nil {
			return out.Fail("validate", err)
		}
		email, err := client.About(ctx)
		if err != nil {
			return out.Fail("validate", err)
		}
		result.ServiceIdentity = email
		for _, fork := range cfg.Targets.Forks {
			if _, err := client.ListChildren(ctx, fork.DriveFolderID, ""); err != nil {
				return out.Fail("validate", err)
			}
			out.Verbose("Fork %s: folder %s is readable", fork.Path, fork.DriveFolderID)
		}
	}

	out.Log("Config OK: %s with %d fork(s)", result.Repo, len(result.Forks))
	return out.WriteSuccess("validate", result)
}
