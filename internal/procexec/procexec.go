// Package procexec wraps external process invocations (ninja, git, the C
// preprocessor) with a timeout and structured error capture, the common
// contract every process this system shells out to needs. Grounded on the
// exec.Command/CombinedOutput style used throughout BeadsLog's internal/git
// package, generalized into one shared helper instead of repeating
// timeout/error-wrapping boilerplate at each call site.
package procexec

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/doldecomp/agentcoord/internal/errs"
)

// Result carries the captured output of a successful run.
type Result struct {
	Stdout string
	Stderr string
}

// Run executes name with args, in dir (ignored if empty), bounded by
// timeout. A non-zero exit or a timeout is surfaced as
// *errs.ExternalProcessError carrying the captured stdout/stderr.
func Run(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errs.NewExternalProcessError(name, args, exitCode, stdout.String(), stderr.String(),
			errs.Cancelled("%s timed out after %s", name, timeout))
	}

	return nil, errs.NewExternalProcessError(name, args, exitCode, stdout.String(), stderr.String(), err)
}

// RunStdin is Run, but feeds stdin to the child process — used for piping a
// context string through `cc -E -`.
func RunStdin(ctx context.Context, timeout time.Duration, dir, stdin, name string, args ...string) (*Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Stdin = bytes.NewBufferString(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return &Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errs.NewExternalProcessError(name, args, exitCode, stdout.String(), stderr.String(),
			errs.Cancelled("%s timed out after %s", name, timeout))
	}

	return nil, errs.NewExternalProcessError(name, args, exitCode, stdout.String(), stderr.String(), err)
}
