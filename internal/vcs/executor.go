// Package vcs runs version-control commands and inspects working trees.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// Options configures one command.
type Options struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// Silent keeps stdout out of the debug log.
	Silent bool
	// IgnoreReturnCode returns a non-zero exit as a Result instead of an error.
	IgnoreReturnCode bool
	// Env is appended to the process environment.
	Env map[string]string
}

// Result holds the captured output of a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs external commands.
type Executor interface {
	Execute(ctx context.Context, name string, args []string, opts Options) (*Result, error)
}

// CommandError is a command that exited non-zero.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s exited with code %d", e.Name, strings.Join(e.Args, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// CommandExecutor runs commands with os/exec.
type CommandExecutor struct {
	logger logging.Logger
}

func NewCommandExecutor(logger logging.Logger) *CommandExecutor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &CommandExecutor{logger: logger}
}

// Execute runs name with args. A non-zero exit is a *CommandError wrapped in
// an AppError unless opts.IgnoreReturnCode is set. Failing to start the
// command is always an error.
func (c *CommandExecutor) Execute(ctx context.Context, name string, args []string, opts Options) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range opts.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		return result, utils.WrapAppError(
			utils.NewCLIError(utils.ErrCodeVCSFailed, fmt.Sprintf("%s: %v", name, err)).
				WithOperation(name).
				Build(), err)
	}

	fields := []logging.Field{
		logging.F("cmd", name),
		logging.F("args", strings.Join(args, " ")),
		logging.F("exitCode", result.ExitCode),
	}
	if !opts.Silent {
		fields = append(fields, logging.F("stdout", strings.TrimSpace(result.Stdout)))
	}
	c.logger.Debug("Command finished", fields...)

	if result.ExitCode != 0 && !opts.IgnoreReturnCode {
		cmdErr := &CommandError{Name: name, Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr}
		return result, utils.WrapAppError(
			utils.NewCLIError(utils.ErrCodeVCSFailed, cmdErr.Error()).
				WithOperation(name).
				WithContext("exitCode", result.ExitCode).
				Build(), cmdErr)
	}
	return result, nil
}
