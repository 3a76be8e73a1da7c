package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivemirror/internal/auth"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Manage the GitHub token and inspect the Drive service account",
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-github-token",
	Short: "Store a GitHub token",
	Long: `Store the GitHub token used to push and open pull requests. The token is
read from --token or, when omitted, from the first line of stdin.

GITHUB_TOKEN, when set, always takes precedence over the stored token.`,
	Args: cobra.NoArgs,
	RunE: runAuthSetToken,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored GitHub token",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  "Display where secrets are stored, whether a GitHub token is available and which service account Drive calls use",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authToken string

func init() {
	authSetTokenCmd.Flags().StringVar(&authToken, "token", "", "GitHub token (default: read from stdin)")

	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetTokenCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthSetToken(cmd *cobra.Command, args []string) error {
	out := newOutput()

	token := authToken
	if token == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return out.Fail("auth.set-github-token", utils.NewValidationError(utils.ErrCodeInvalidArgument,
				"no token given: pass --token or pipe it on stdin"))
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return out.Fail("auth.set-github-token", utils.NewValidationError(utils.ErrCodeInvalidArgument, "token must not be empty"))
	}

	mgr := auth.NewManager(configDir())
	if err := mgr.SetGitHubToken(token); err != nil {
		return out.Fail("auth.set-github-token", fmt.Errorf("failed to store token: %w", err))
	}
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.Log("%s", warning)
	}

	out.Log("GitHub token stored (%s)", mgr.GetStorageBackend())
	return out.WriteSuccess("auth.set-github-token", map[string]interface{}{
		"stored":  true,
		"backend": mgr.GetStorageBackend(),
	})
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	out := newOutput()

	mgr := auth.NewManager(configDir())
	err := mgr.DeleteGitHubToken()
	if err != nil && !errors.Is(err, auth.ErrSecretNotFound) {
		return out.Fail("auth.logout", fmt.Errorf("failed to remove token: %w", err))
	}

	out.Log("GitHub token removed")
	return out.WriteSuccess("auth.logout", map[string]interface{}{
		"removed": err == nil,
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	out := newOutput()

	mgr := auth.NewManager(configDir())
	status := map[string]interface{}{
		"storageBackend": mgr.GetStorageBackend(),
		"githubToken":    tokenSource(mgr),
	}
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.AddWarning("STORAGE", warning, "info")
	}

	if runtimeConfig.CredentialsFile == "" {
		status["serviceAccount"] = ""
		out.AddWarning(utils.ErrCodeAuthRequired, "no service account key configured", "warning")
	} else {
		sa, err := auth.LoadServiceAccount(cmd.Context(), runtimeConfig.CredentialsFile)
		if err != nil {
			return out.Fail("auth.status", err)
		}
		status["serviceAccount"] = sa.Email
		status["credentialsFile"] = runtimeConfig.CredentialsFile
	}

	if globalFlags.OutputFormat == types.OutputFormatJSON {
		return out.WriteSuccess("auth.status", status)
	}
	fmt.Fprintf(out.writer, "Secret storage:   %s\n", status["storageBackend"])
	fmt.Fprintf(out.writer, "GitHub token:     %s\n", status["githubToken"])
	if email, _ := status["serviceAccount"].(string); email != "" {
		fmt.Fprintf(out.writer, "Service account:  %s\n", email)
	} else {
		fmt.Fprintln(out.writer, "Service account:  not configured")
	}
	return nil
}

// tokenSource names where the GitHub token comes from, without revealing it.
func tokenSource(mgr *auth.Manager) string {
	if strings.TrimSpace(os.Getenv(auth.GitHubTokenEnv)) != "" {
		return "environment (" + auth.GitHubTokenEnv + ")"
	}
	if _, err := mgr.GitHubToken(); err == nil {
		return "stored"
	}
	return "missing"
}
