package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Commands for managing drivemirror runtime settings. The sync document is separate (--config).",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective runtime settings after environment overrides",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Use 'config show' to see available keys",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	Long:  "Reset all configuration settings to their default values",
	RunE:  runConfigReset,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := newOutput()

	cfg, err := config.Load()
	if err != nil {
		return out.Fail("config.show", utils.NewValidationError(utils.ErrCodeInvalidConfig, err.Error()))
	}

	return out.WriteSuccess("config.show", cfg)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	out := newOutput()

	key := args[0]
	value := args[1]

	cfg, err := config.Load()
	if err != nil {
		return out.Fail("config.set", utils.NewValidationError(utils.ErrCodeInvalidConfig, err.Error()))
	}

	if err := applySetting(cfg, key, value); err != nil {
		return out.Fail("config.set", err)
	}

	if err := cfg.Save(); err != nil {
		return out.Fail("config.set", utils.NewValidationError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("Failed to save configuration: %v", err)))
	}

	out.Log("Configuration updated: %s = %s", key, value)
	return out.WriteSuccess("config.set", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

// applySetting sets one key on cfg. Range checks beyond parsing are left to
// Config.Validate, which Save runs.
func applySetting(cfg *config.Config, key, value string) error {
	invalid := func(msg string) error {
		return utils.NewValidationError(utils.ErrCodeInvalidArgument, msg)
	}
	atoi := func(name string) (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, invalid(name + " must be an integer")
		}
		return n, nil
	}

	var err error
	switch strings.ToLower(key) {
	case "defaultoutputformat":
		if value != string(types.OutputFormatJSON) && value != string(types.OutputFormatTable) {
			return invalid("Invalid output format. Must be 'json' or 'table'")
		}
		cfg.DefaultOutputFormat = types.OutputFormat(value)
	case "maxretries":
		cfg.MaxRetries, err = atoi("Max retries")
	case "retrybasedelay":
		cfg.RetryBaseDelay, err = atoi("Retry base delay")
	case "requesttimeout":
		cfg.RequestTimeout, err = atoi("Request timeout")
	case "concurrency":
		cfg.Concurrency, err = atoi("Concurrency")
	case "permissionconcurrency":
		cfg.PermissionConcurrency, err = atoi("Permission concurrency")
	case "requestspersecond":
		rps, parseErr := strconv.ParseFloat(value, 64)
		if parseErr != nil {
			return invalid("Requests per second must be a number")
		}
		cfg.RequestsPerSecond = rps
	case "loglevel":
		cfg.LogLevel = value
	case "logfile":
		cfg.LogFile = value
	case "ledgerpath":
		cfg.LedgerPath = value
	case "credentialsfile":
		cfg.CredentialsFile = value
	case "coloroutput":
		cfg.ColorOutput = parseBool(value)
	default:
		return invalid(fmt.Sprintf("Unknown configuration key: %s", key))
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return invalid(err.Error())
	}
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	out := newOutput()

	cfg := config.DefaultConfig()
	if err := cfg.Save(); err != nil {
		return out.Fail("config.reset", fmt.Errorf("failed to reset configuration: %w", err))
	}

	out.Log("Configuration reset to defaults")
	return out.WriteSuccess("config.reset", cfg)
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
