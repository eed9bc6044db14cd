// Package runner executes operator commands and captures their combined
// output and exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output after the process exits or
// is killed.
const waitDelay = 2 * time.Second

// ErrEmptyCommand is returned for a blank command line.
var ErrEmptyCommand = errors.New("command cannot be empty")

// Invocation describes one command to run.
type Invocation struct {
	// Command is the raw command line.
	Command string
	// Direct runs the program named by the first field of Command without a
	// shell. Otherwise Command is passed to the user's shell with -c.
	Direct bool
	// Dir is the working directory; empty means the process's own.
	Dir string
}

// Result is the outcome of a command that was started.
type Result struct {
	// Output is stdout and stderr interleaved as they were written.
	Output []byte
	// ExitCode is the process exit status; -1 when killed by a signal.
	ExitCode int
	// Omitted counts output bytes dropped by the capture cap.
	Omitted int
}

// Runner runs commands through the detected user shell.
type Runner struct {
	shell    *Shell
	maxBytes int
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell overrides shell detection.
func WithShell(s *Shell) Option {
	return func(r *Runner) { r.shell = s }
}

// WithMaxOutputBytes overrides DefaultMaxOutputBytes.
func WithMaxOutputBytes(n int) Option {
	return func(r *Runner) { r.maxBytes = n }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{maxBytes: DefaultMaxOutputBytes}
	for _, opt := range opts {
		opt(r)
	}
	if r.shell == nil {
		r.shell = DetectUserShell()
	}
	return r
}

// Shell returns the shell used for non-direct invocations.
func (r *Runner) Shell() *Shell { return r.shell }

// Run executes inv and waits for it. A non-zero exit status is reported in
// the Result, not as an error. Errors mean the command could not be started
// or ctx ended first.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	argv, err := r.argv(inv)
	if err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if inv.Dir != "" {
		cmd.Dir = inv.Dir
	}
	// Background children can hold the output pipe open after a kill.
	cmd.WaitDelay = waitDelay

	output := NewHeadTailBuffer(r.maxBytes)
	cmd.Stdout = output
	cmd.Stderr = output

	err = cmd.Run()
	result := Result{Output: output.Bytes(), Omitted: output.Omitted()}

	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
			result.ExitCode = cmd.ProcessState.ExitCode()
			return result, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("failed to start %q: %w", argv[0], err)
	}
	return result, nil
}

func (r *Runner) argv(inv Invocation) ([]string, error) {
	if strings.TrimSpace(inv.Command) == "" {
		return nil, ErrEmptyCommand
	}
	if inv.Direct {
		return strings.Fields(inv.Command), nil
	}
	return r.shell.ExecArgs(inv.Command), nil
}
