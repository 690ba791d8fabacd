package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// CommandRunner abstracts shell-out operations for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	// RunWithOutput returns stdout. When the command exits non-zero the
	// captured stdout is still returned alongside the error, since tools such
	// as `screen -ls` report useful output with a failing status.
	RunWithOutput(ctx context.Context, name string, args ...string) ([]byte, error)
	RunInDir(ctx context.Context, dir, name string, args ...string) error
	CommandExists(name string) bool
}

// OSCommandRunner executes real system commands.
type OSCommandRunner struct{}

// NewOSCommandRunner returns a CommandRunner that executes real system commands.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run executes a system command and returns any error.
func (r *OSCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	return r.RunInDir(ctx, "", name, args...)
}

// RunInDir executes a system command with dir as its working directory.
func (r *OSCommandRunner) RunInDir(ctx context.Context, dir, name string, args ...string) error {
	slog.Debug("exec", "cmd", name, "args", args, "dir", dir)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, stderr.String())
	}
	return nil
}

// RunWithOutput executes a system command and returns its stdout output.
func (r *OSCommandRunner) RunWithOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	slog.Debug("exec", "cmd", name, "args", args)
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s %v: %w: %s", name, args, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%s %v: %w", name, args, err)
	}
	return out, nil
}

// CommandExists checks whether a command is available on the system PATH.
func (r *OSCommandRunner) CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
