package workbench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// CommandError reports a command that exited with a non-zero status
type CommandError struct {
	Command  Command
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command.Name, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// MissingOutputError reports a command that exited cleanly without
// creating its output file
type MissingOutputError struct {
	Command Command
	Path    string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("%s did not create %s", e.Command.Name, e.Path)
}

// ExecRunner runs commands as child processes
type ExecRunner struct {
	// Timeout bounds each command; zero means no limit
	Timeout time.Duration

	// Logger receives the command lines, may be nil
	Logger *slog.Logger
}

// Run starts cmd and waits for it to finish. A non-zero exit status is
// returned as a *CommandError carrying the command's stderr.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	if r.Logger != nil {
		r.Logger.Debug("running command", "command", cmd.String())
	}

	var stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stderr = &stderr
	// Child processes left holding stderr must not block Wait after a kill
	c.WaitDelay = time.Second

	start := time.Now()
	err := c.Run()
	if r.Logger != nil {
		r.Logger.Debug("command finished", "command", cmd.Name, "elapsed", time.Since(start))
	}
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", cmd.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Command:  cmd,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("failed to start %s: %w", cmd.Name, err)
}

// run executes cmd with r and checks that its output file exists
func run(ctx context.Context, r Runner, cmd Command) error {
	if err := r.Run(ctx, cmd); err != nil {
		return err
	}
	if cmd.Output == "" {
		return nil
	}
	if _, err := os.Stat(cmd.Output); err != nil {
		if os.IsNotExist(err) {
			return &MissingOutputError{Command: cmd, Path: cmd.Output}
		}
		return err
	}
	return nil
}
