// Package pipeline sequences a build: load the project descriptor, render the
// sources into the staging directory, then run the compiler when its inputs
// changed. Progress is reported to an Observer and journaled under
// <out>/.rtlbuild/logs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/rtlbuild/internal/config"
	"github.com/kingrea/rtlbuild/internal/logbook"
	"github.com/kingrea/rtlbuild/internal/logging"
	"github.com/kingrea/rtlbuild/internal/pla"
	"github.com/kingrea/rtlbuild/internal/project"
	"github.com/kingrea/rtlbuild/internal/render"
	"github.com/kingrea/rtlbuild/internal/toolexec"
	"github.com/kingrea/rtlbuild/internal/verilator"
)

// Options control a Run.
type Options struct {
	// ProjectFile is the root descriptor.
	ProjectFile string
	// OutDir holds every generated file.
	OutDir string
	// Force compiles even when the sentinel says the last compile is current.
	Force bool
	// Clean removes staged sources, compiler output and the sentinel first.
	Clean bool
	// RenderOnly stops after the render stage.
	RenderOnly bool
	// Timeout, when positive, replaces the configured tool timeout.
	Timeout time.Duration
	// Defines override descriptor defines.
	Defines map[string]string
	// MergePolicy, when set, replaces the root document's merge key.
	MergePolicy project.MergePolicy
	Observer    Observer
	// Runner executes external tools; nil runs real subprocesses.
	Runner toolexec.Runner
	// Output, when set, also receives the tools' console output.
	Output io.Writer
}

// ReasonNotRendered is reported by Pending when no filelist exists yet.
const ReasonNotRendered = "sources not rendered"

type run struct {
	opts   Options
	id     string
	book   *logbook.Logbook
	report Report
}

// Run executes one build. The returned report is filled in as far as the
// build got, and is saved to the state file even when an error is returned.
func Run(ctx context.Context, opts Options) (Report, error) {
	if opts.ProjectFile == "" {
		return Report{}, fmt.Errorf("pipeline: project file is required")
	}
	if opts.OutDir == "" {
		opts.OutDir = "build"
	}
	if opts.Runner == nil {
		opts.Runner = toolexec.NewExecRunner()
	}

	if err := config.InitBuildDir(opts.OutDir); err != nil {
		return Report{}, fmt.Errorf("pipeline: init %s: %w", opts.OutDir, err)
	}
	cfg, err := config.NewConfig(opts.OutDir)
	if err != nil {
		return Report{}, err
	}
	if opts.Timeout > 0 {
		cfg.SetTimeout(opts.Timeout)
	}

	book, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return Report{}, fmt.Errorf("pipeline: open journal: %w", err)
	}
	transcript, err := logging.New(cfg.LogsDir())
	if err != nil {
		return Report{}, err
	}
	defer transcript.Close()
	var toolOutput io.Writer = transcript
	if opts.Output != nil {
		toolOutput = io.MultiWriter(transcript, opts.Output)
	}

	id := uuid.NewString()
	r := &run{
		opts: opts,
		id:   id,
		book: book.WithRun(id),
		report: Report{
			RunID:     id,
			Project:   opts.ProjectFile,
			Status:    StatusRunning,
			StartedAt: time.Now().UTC(),
		},
	}
	r.book.Info("build started: project=%s out=%s force=%t clean=%t", opts.ProjectFile, cfg.OutDir, opts.Force, opts.Clean)

	orch := verilator.New(verilator.Options{
		Executable:  cfg.Tool.Tools.Verilator,
		CommandFile: cfg.CommandFilePath(),
		OutputDir:   cfg.VerilatedDir(),
		Runner:      opts.Runner,
		Timeout:     cfg.Timeout(),
		Output:      toolOutput,
	})
	if opts.Clean {
		if err := orch.Clean(); err != nil {
			return r.finish(cfg, err)
		}
		if err := os.RemoveAll(cfg.RTLDir()); err != nil {
			return r.finish(cfg, fmt.Errorf("pipeline: clean staging dir: %w", err))
		}
		r.book.Info("cleaned %s", cfg.OutDir)
	}

	var desc project.Descriptor
	err = r.stage(StageLoad, func() (Status, string, error) {
		var loadOpts []project.Option
		if len(opts.Defines) > 0 {
			loadOpts = append(loadOpts, project.WithDefines(opts.Defines))
		}
		if opts.MergePolicy != "" {
			loadOpts = append(loadOpts, project.WithMergePolicy(opts.MergePolicy))
		}
		var err error
		desc, err = project.Load(opts.ProjectFile, loadOpts...)
		if err != nil {
			return StatusFailed, "", err
		}
		r.report.TopModule = desc.TopModule()
		return StatusDone, fmt.Sprintf("top %s, %d sources, %d documents, merge %s",
			desc.TopModule(), len(desc.Sources()), len(desc.Files()), desc.Policy()), nil
	})
	if err != nil {
		return r.finish(cfg, err)
	}

	var rendered render.Result
	err = r.stage(StageRender, func() (Status, string, error) {
		renderer := render.New(render.Options{
			StagingDir:   cfg.RTLDir(),
			FilelistPath: cfg.FilelistPath(),
			Markers:      pla.Markers{Begin: cfg.Tool.Render.Markers.Begin, End: cfg.Tool.Render.Markers.End},
			Compiler: &pla.Compiler{
				Runner:     opts.Runner,
				Executable: cfg.Tool.Tools.Optimizer,
				Script:     cfg.Tool.Optimizer.Script,
				Timeout:    cfg.Timeout(),
				Output:     toolOutput,
			},
			Jobs:         cfg.Jobs(),
			Dependencies: []string{cfg.ToolConfigPath()},
			OnArtifact: func(a render.Artifact) {
				if a.Rendered {
					r.book.Info("rendered %s -> %s (%d regions)", a.Source, a.Staged, a.Regions)
				}
			},
		})
		var err error
		rendered, err = renderer.Render(ctx, desc)
		if err != nil {
			return StatusFailed, "", err
		}
		r.report.Artifacts = rendered.Paths()
		for _, a := range rendered.Artifacts {
			if a.Rendered {
				r.report.Rendered++
			}
		}
		if !rendered.Changed {
			return StatusDone, fmt.Sprintf("%d sources up to date", len(rendered.Artifacts)), nil
		}
		// The sentinel must not outlive the staged files it was written for,
		// even when this run stops before compiling.
		if err := orch.Invalidate(); err != nil {
			return StatusFailed, "", err
		}
		return StatusDone, fmt.Sprintf("%d of %d sources rendered", r.report.Rendered, len(rendered.Artifacts)), nil
	})
	if err != nil {
		return r.finish(cfg, err)
	}

	if opts.RenderOnly {
		r.skip(StageCompile, "render only")
		return r.finish(cfg, nil)
	}

	err = r.stage(StageCompile, func() (Status, string, error) {
		outcome, err := orch.Execute(ctx, desc, rendered.FilelistPath, rendered.Changed || opts.Force)
		r.report.Reason = outcome.Reason
		if err != nil {
			return StatusFailed, outcome.Reason, err
		}
		if !outcome.Ran {
			return StatusSkipped, "up to date", nil
		}
		r.report.Compiled = true
		return StatusDone, fmt.Sprintf("%s (%s)", outcome.Reason, outcome.Result.Duration.Round(time.Millisecond)), nil
	})
	return r.finish(cfg, err)
}

// stage runs fn between a running and a terminal event.
func (r *run) stage(s Stage, fn func() (Status, string, error)) error {
	r.emit(s, StatusRunning, "")
	start := time.Now()
	status, detail, err := fn()
	rep := StageReport{Stage: s, Status: status, Detail: detail, Duration: time.Since(start)}
	if err != nil {
		rep.Status = StatusFailed
		rep.Error = err.Error()
		r.book.Error("%s failed: %v", s, err)
		r.emit(s, StatusFailed, err.Error())
	} else {
		r.book.Info("%s %s: %s", s, status, detail)
		r.emit(s, status, detail)
	}
	r.report.Stages = append(r.report.Stages, rep)
	return err
}

func (r *run) skip(s Stage, detail string) {
	r.report.Stages = append(r.report.Stages, StageReport{Stage: s, Status: StatusSkipped, Detail: detail})
	r.book.Info("%s skipped: %s", s, detail)
	r.emit(s, StatusSkipped, detail)
}

func (r *run) emit(s Stage, status Status, detail string) {
	if r.opts.Observer == nil {
		return
	}
	r.opts.Observer.Observe(Event{RunID: r.id, Stage: s, Status: status, Detail: detail, Time: time.Now()})
}

func (r *run) finish(cfg *config.Config, err error) (Report, error) {
	r.report.FinishedAt = time.Now().UTC()
	if err != nil {
		r.report.Status = StatusFailed
		r.book.Error("build failed after %s", r.report.FinishedAt.Sub(r.report.StartedAt).Round(time.Millisecond))
	} else {
		r.report.Status = StatusDone
		r.book.Info("build finished in %s", r.report.FinishedAt.Sub(r.report.StartedAt).Round(time.Millisecond))
	}
	if saveErr := SaveState(cfg.StatePath(), r.report); saveErr != nil {
		r.book.Warn("%v", saveErr)
		if err == nil {
			err = saveErr
		}
	}
	return r.report, err
}

// Pending reports why the next Run would compile, using the descriptor and
// the filelist left by the last render. It runs no tools and writes nothing.
// An empty reason means up to date.
func Pending(opts Options) (string, error) {
	if opts.OutDir == "" {
		opts.OutDir = "build"
	}
	cfg, err := config.NewConfig(opts.OutDir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(cfg.FilelistPath()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ReasonNotRendered, nil
		}
		return "", fmt.Errorf("pipeline: %w", err)
	}
	var loadOpts []project.Option
	if len(opts.Defines) > 0 {
		loadOpts = append(loadOpts, project.WithDefines(opts.Defines))
	}
	if opts.MergePolicy != "" {
		loadOpts = append(loadOpts, project.WithMergePolicy(opts.MergePolicy))
	}
	desc, err := project.Load(opts.ProjectFile, loadOpts...)
	if err != nil {
		return "", err
	}
	orch := verilator.New(verilator.Options{
		Executable:  cfg.Tool.Tools.Verilator,
		CommandFile: cfg.CommandFilePath(),
		OutputDir:   cfg.VerilatedDir(),
	})
	return orch.Status(desc, cfg.FilelistPath())
}
