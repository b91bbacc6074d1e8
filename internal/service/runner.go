package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// RunResult is the outcome of a finished command.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner runs a command to completion and captures its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*RunResult, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
}

// Run starts the command and waits for it. A nonzero exit is reported in
// the result, not as an error; err is set only when the command could not
// run at all.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &RunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 && ctx.Err() == nil:
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		return result, fmt.Errorf("run %s: %w", name, err)
	}
}
