package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
	"github.com/dl-alexandre/drivemirror/pkg/version"
)

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	SyncConfig   string
	RepoRoot     string
	Credentials  string
	OutputFormat types.OutputFormat
	JSON         bool
	Quiet        bool
	Verbose      bool
	Debug        bool
	LogFile      string
	Concurrency  int
}

var (
	globalFlags    GlobalFlags
	runtimeConfig  *config.Config
	logger         logging.Logger = logging.NewNoOpLogger()
	debugTransport *logging.DebugTransport
)

var rootCmd = &cobra.Command{
	Use:   "drivemirror",
	Short: "Mirror Google Drive folders into a git repository",
	Long: `drivemirror mirrors Google Drive folder trees into a git working tree and
publishes the result as a pull request.

Native documents are exported to PDF, binary files are downloaded, and every
item gets a JSON sidecar linking back to Drive.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateGlobalFlags(); err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidConfig, err.Error()).Build(), err)
		}
		applyFlagOverrides(cmd, cfg)
		runtimeConfig = cfg

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return utils.NewValidationError(utils.ErrCodeInvalidConfig, err.Error())
		}
		logConfig := logging.LogConfig{
			Level:           level,
			OutputFile:      cfg.LogFile,
			EnableConsole:   !globalFlags.Quiet,
			EnableDebug:     globalFlags.Debug,
			RedactSensitive: true,
			EnableColor:     cfg.ColorOutput,
			EnableTimestamp: true,
		}
		if globalFlags.Verbose || globalFlags.Debug {
			logConfig.Level = logging.DEBUG
		}
		if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
			logConfig.EnableConsole = false
		}

		logger, debugTransport, err = logging.NewDebugLoggerWithTransport(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := newOutput()
		if globalFlags.OutputFormat == types.OutputFormatJSON {
			return out.WriteSuccess("version", version.Get())
		}
		fmt.Fprintln(out.writer, version.Get().String())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&globalFlags.SyncConfig, "config", "c", "drivemirror.yaml", "Path to the sync config (YAML, JSON or TOML)")
	pf.StringVar(&globalFlags.RepoRoot, "repo", ".", "Root of the git working tree to mirror into")
	pf.StringVar(&globalFlags.Credentials, "credentials", "", "Service account key file (default: config or GOOGLE_APPLICATION_CREDENTIALS)")
	pf.StringVar((*string)(&globalFlags.OutputFormat), "output", "table", "Output format (json, table)")
	pf.BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")
	pf.BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	pf.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&globalFlags.Debug, "debug", false, "Log every HTTP request")
	pf.StringVar(&globalFlags.LogFile, "log-file", "", "Write JSON log lines to this file")
	pf.IntVar(&globalFlags.Concurrency, "concurrency", 0, "Items materialized in parallel (default from config)")

	rootCmd.AddCommand(versionCmd)
}

func validateGlobalFlags() error {
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}
	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return utils.NewValidationError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid output format: %s", globalFlags.OutputFormat))
	}
	if globalFlags.Concurrency < 0 || globalFlags.Concurrency > 64 {
		return utils.NewValidationError(utils.ErrCodeInvalidArgument, "--concurrency must be between 1 and 64")
	}
	return nil
}

// applyFlagOverrides gives explicitly set flags precedence over config and
// environment.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if globalFlags.Credentials != "" {
		cfg.CredentialsFile = globalFlags.Credentials
	}
	if globalFlags.LogFile != "" {
		cfg.LogFile = globalFlags.LogFile
	}
	if globalFlags.Concurrency > 0 {
		cfg.Concurrency = globalFlags.Concurrency
	}
	if !cmd.Flags().Changed("output") && !globalFlags.JSON {
		globalFlags.OutputFormat = cfg.DefaultOutputFormat
	}
}

// Execute runs the root command and exits with the code mapped from the
// error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if _, ok := utils.AsAppError(err); !ok || globalFlags.OutputFormat != types.OutputFormatJSON {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(utils.ExitCodeFor(err))
	}
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// GetLogger returns the global logger
func GetLogger() logging.Logger {
	return logger
}
