package venv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Runner executes code against the interpreter inside a virtual environment.
// It runs the code directly via os/exec rather than through the CommandRunner
// seam because it owns the process group of the user's code and must be able
// to kill the whole group on timeout.
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewRunner creates a new Runner with the configured execution timeout
func NewRunner(logger *zap.Logger, config *Config) *Runner {
	return &Runner{
		logger:  logger,
		timeout: time.Duration(config.ExecTimeoutSec) * time.Second,
	}
}

// Run executes code as a single non-interactive interpreter invocation inside
// the environment rooted at envRoot, capturing stdout and stderr completely.
// It never returns an error to its caller: every failure along this path is
// converted to a Result with a diagnostic in Error. On timeout the process
// group is killed, Output is dropped, and Error is a fixed timeout message.
func (r *Runner) Run(ctx context.Context, envRoot, code string) Result {
	python := interpreterPath(envRoot)
	if _, err := os.Stat(python); err != nil {
		return Result{Error: fmt.Sprintf("Error: interpreter not found in environment: %v", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, python, "-c", code) //nolint:gosec // Executing user code is the purpose of this system
	cmd.Dir = envRoot
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 5 * time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Info("code execution timed out",
			zap.String("env", envRoot),
			zap.Duration("timeout", r.timeout))
		return Result{
			TimedOut: true,
			Error:    fmt.Sprintf("Error: Code execution timed out (%d seconds limit)", int(r.timeout.Seconds())),
		}
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			// Spawn failure, missing binary permissions and the like.
			return Result{Error: fmt.Sprintf("Error: %v", err)}
		}
		// Non-zero exit is routine user-code behavior: stderr carries the
		// traceback and is passed through verbatim below.
	}

	return Result{
		Output: stdoutBuf.String(),
		Error:  stderrBuf.String(),
	}
}
