package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when a tool does not exit within its bound.
var ErrTimeout = errors.New("toolexec: timed out")

// waitDelay bounds how long Wait blocks on output pipes after the process is killed.
const waitDelay = 5 * time.Second

// Invocation describes one tool run.
type Invocation struct {
	// Path is the executable, resolved through PATH when it has no separator.
	Path string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Timeout bounds the run; zero means wait forever.
	Timeout time.Duration
	// Output, when set, receives a copy of stdout and stderr as they are produced.
	Output io.Writer
}

// String renders the invocation as a shell-like command line.
func (inv Invocation) String() string {
	parts := append([]string{inv.Path}, inv.Args...)
	return strings.Join(parts, " ")
}

// Result contains the outcome of a completed run. A non-zero ExitCode is not
// an error at this level; callers decide what failure means for their stage.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports a zero exit status.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Tail returns up to n trailing lines of stderr, falling back to stdout when
// stderr is empty.
func (r Result) Tail(n int) string {
	text := strings.TrimSpace(string(r.Stderr))
	if text == "" {
		text = strings.TrimSpace(string(r.Stdout))
	}
	if text == "" || n <= 0 {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Runner executes tool invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, inv Invocation) (Result, error)

// Run calls f(ctx, inv).
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}

// ExecRunner runs invocations as real subprocesses.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts the tool and blocks until it exits, the timeout elapses or ctx is cancelled.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if strings.TrimSpace(inv.Path) == "" {
		return Result{}, fmt.Errorf("toolexec: executable is empty")
	}
	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay
	isolate(cmd)

	var stdout, stderr bytes.Buffer
	if inv.Output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, inv.Output)
		cmd.Stderr = io.MultiWriter(&stderr, inv.Output)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err == nil {
		return res, nil
	}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) && ctx.Err() == nil {
			return res, fmt.Errorf("%w after %s: %s", ErrTimeout, inv.Timeout, inv)
		}
		return res, fmt.Errorf("toolexec: %s: %w", inv, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("toolexec: start %s: %w", inv.Path, err)
}
