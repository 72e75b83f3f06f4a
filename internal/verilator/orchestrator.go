// Package verilator drives the hardware-simulation compiler. It writes the
// command file, decides from the sentinel whether the previous compile is still
// valid, and records a new sentinel only after a successful run.
package verilator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/rtlbuild/internal/artifact"
	"github.com/kingrea/rtlbuild/internal/project"
	"github.com/kingrea/rtlbuild/internal/render"
	"github.com/kingrea/rtlbuild/internal/toolexec"
)

// ErrCompileFailed is returned when the compiler cannot be run or exits non-zero.
var ErrCompileFailed = errors.New("verilator: compile failed")

// Reasons reported in Outcome.Reason.
const (
	ReasonForced         = "forced"
	ReasonMissingCommand = "command file missing"
	ReasonMissingMarker  = "sentinel missing"
	ReasonNewerCommand   = "command file newer than sentinel"
	ReasonChangedCommand = "command file changed"
)

// Options configure an Orchestrator.
type Options struct {
	Executable string
	// CommandFile is the path of the generated command file; its sentinel sits
	// next to it with a .timestamp suffix.
	CommandFile string
	// OutputDir is the compiler's private output directory.
	OutputDir string
	Runner    toolexec.Runner
	Store     *artifact.Store
	Timeout   time.Duration
	// Output, when set, receives the compiler's console output.
	Output io.Writer
}

// Outcome describes what Execute did.
type Outcome struct {
	// Ran is true when the compiler was invoked.
	Ran bool
	// Reason says why the compile was considered stale; empty when skipped.
	Reason      string
	CommandFile string
	Sentinel    string
	Result      toolexec.Result
}

// Orchestrator runs the compiler against the staged sources.
type Orchestrator struct {
	opts     Options
	sentinel artifact.Sentinel
}

// New returns an orchestrator. A nil Store or Runner gets the default.
func New(opts Options) *Orchestrator {
	if opts.Store == nil {
		opts.Store = artifact.NewStore()
	}
	if opts.Runner == nil {
		opts.Runner = toolexec.NewExecRunner()
	}
	return &Orchestrator{opts: opts, sentinel: artifact.NewSentinel(opts.CommandFile)}
}

// Execute compiles when forced or when the command file or its sentinel say
// the last compile no longer matches the inputs. The output directory is wiped
// before every compile.
func (o *Orchestrator) Execute(ctx context.Context, desc project.Descriptor, filelistPath string, force bool) (Outcome, error) {
	out := Outcome{CommandFile: o.sentinel.Artifact, Sentinel: o.sentinel.Marker}
	if o.opts.CommandFile == "" || o.opts.OutputDir == "" || o.opts.Executable == "" {
		return out, fmt.Errorf("verilator: executable, command file and output dir are required")
	}
	sources, err := render.ReadFilelist(filelistPath)
	if err != nil {
		return out, fmt.Errorf("verilator: %w", err)
	}
	text := CommandFile(desc, o.opts.OutputDir, sources)

	reason, err := o.staleness(force, text)
	if err != nil {
		return out, err
	}
	if reason == "" {
		return out, nil
	}
	out.Reason = reason

	if err := o.opts.Store.Invalidate(o.sentinel); err != nil {
		return out, fmt.Errorf("verilator: %w", err)
	}
	if err := os.RemoveAll(o.opts.OutputDir); err != nil {
		return out, fmt.Errorf("verilator: clear output dir: %w", err)
	}
	if err := os.MkdirAll(o.opts.OutputDir, 0o755); err != nil {
		return out, fmt.Errorf("verilator: create output dir: %w", err)
	}
	if err := artifact.WriteFileAtomic(o.sentinel.Artifact, []byte(text), 0o644); err != nil {
		return out, fmt.Errorf("verilator: write command file: %w", err)
	}

	inv := toolexec.Invocation{
		Path:    o.opts.Executable,
		Args:    []string{"-f", o.sentinel.Artifact},
		Dir:     filepath.Dir(o.sentinel.Artifact),
		Timeout: o.opts.Timeout,
		Output:  o.opts.Output,
	}
	out.Ran = true
	res, err := o.opts.Runner.Run(ctx, inv)
	out.Result = res
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrCompileFailed, err)
	}
	if !res.Success() {
		var detail string
		if tail := res.Tail(20); tail != "" {
			detail = "\n" + tail
		}
		return out, fmt.Errorf("%w: %s exited with status %d%s", ErrCompileFailed, o.opts.Executable, res.ExitCode, detail)
	}
	check, err := o.opts.Store.Check(o.opts.OutputDir, artifact.KindDirectory)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrCompileFailed, err)
	}
	if check.State != artifact.StateReady {
		return out, fmt.Errorf("%w: output dir %s is %s", ErrCompileFailed, o.opts.OutputDir, check.State)
	}
	if err := o.opts.Store.Touch(o.sentinel); err != nil {
		return out, fmt.Errorf("verilator: %w", err)
	}
	return out, nil
}

// Status reports whether the last compile still matches desc and the
// filelist, without running anything. An empty reason means up to date.
func (o *Orchestrator) Status(desc project.Descriptor, filelistPath string) (string, error) {
	sources, err := render.ReadFilelist(filelistPath)
	if err != nil {
		return "", fmt.Errorf("verilator: %w", err)
	}
	return o.staleness(false, CommandFile(desc, o.opts.OutputDir, sources))
}

func (o *Orchestrator) staleness(force bool, text string) (string, error) {
	if force {
		return ReasonForced, nil
	}
	current, err := os.ReadFile(o.sentinel.Artifact)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ReasonMissingCommand, nil
		}
		return "", fmt.Errorf("verilator: read command file: %w", err)
	}
	state, err := o.opts.Store.CheckSentinel(o.sentinel)
	if err != nil {
		return "", fmt.Errorf("verilator: %w", err)
	}
	switch state {
	case artifact.StateMissing:
		return ReasonMissingMarker, nil
	case artifact.StateStale:
		return ReasonNewerCommand, nil
	}
	if !bytes.Equal(current, []byte(text)) {
		return ReasonChangedCommand, nil
	}
	return "", nil
}

// Invalidate removes the sentinel so the next Execute compiles even when the
// command file is unchanged. Call it whenever a staged source changes.
func (o *Orchestrator) Invalidate() error {
	if err := o.opts.Store.Invalidate(o.sentinel); err != nil {
		return fmt.Errorf("verilator: %w", err)
	}
	return nil
}

// Clean removes the output directory and the sentinel so the next Execute
// compiles from scratch.
func (o *Orchestrator) Clean() error {
	if err := o.Invalidate(); err != nil {
		return err
	}
	if strings.TrimSpace(o.opts.OutputDir) == "" {
		return nil
	}
	if err := os.RemoveAll(o.opts.OutputDir); err != nil {
		return fmt.Errorf("verilator: clear output dir: %w", err)
	}
	return nil
}
