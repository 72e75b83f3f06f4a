// cmd/rtlbuild/main.go
//
// This is the entry point for the rtlbuild CLI.
//
// Flow:
// 1. Parse flags and locate the project descriptor
// 2. Run the pipeline: load, render, compile
// 3. Report progress either interactively (-tui) or as plain lines

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/kingrea/rtlbuild/internal/config"
	"github.com/kingrea/rtlbuild/internal/pipeline"
	"github.com/kingrea/rtlbuild/internal/project"
	"github.com/kingrea/rtlbuild/internal/tui"
)

func main() {
	projectFile := flag.String("project", "", "path to the project descriptor (or pass it as the first argument)")
	outDir := flag.String("out", "build", "output directory for staged sources and compiler output")
	force := flag.Bool("force", false, "compile even when nothing changed")
	clean := flag.Bool("clean", false, "remove staged sources and compiler output before building")
	renderOnly := flag.Bool("render-only", false, "stop after rendering sources")
	interactive := flag.Bool("tui", false, "show interactive progress")
	verbose := flag.Bool("v", false, "echo tool output to the terminal")
	timeout := flag.Duration("timeout", 0, "bound on each tool run (overrides tools.timeout)")
	merge := flag.String("merge", "", "merge policy for included lists: append or dedup")
	status := flag.Bool("status", false, "print the last run recorded in the output directory and exit")
	defines := keyValueFlag{}
	flag.Var(&defines, "D", "define override (NAME=VALUE, repeatable)")
	flag.Parse()

	path := strings.TrimSpace(*projectFile)
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	opts := pipeline.Options{
		ProjectFile: path,
		OutDir:      *outDir,
		Force:       *force,
		Clean:       *clean,
		RenderOnly:  *renderOnly,
		Timeout:     *timeout,
		Defines:     defines,
		MergePolicy: project.MergePolicy(strings.TrimSpace(*merge)),
	}
	if *verbose {
		opts.Output = os.Stdout
	}

	if *status {
		printStatus(opts)
		return
	}
	if path == "" {
		die("--project is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		report pipeline.Report
		err    error
	)
	if *interactive {
		report, err = tui.Watch(ctx, opts)
	} else {
		opts.Observer = tui.PlainObserver(os.Stdout)
		report, err = pipeline.Run(ctx, opts)
	}
	if err != nil {
		if errors.Is(err, tui.ErrAborted) {
			die("aborted")
		}
		die("%v", err)
	}
	summarize(os.Stdout, report)
}

func summarize(w io.Writer, r pipeline.Report) {
	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
	switch {
	case r.Compiled:
		fmt.Fprintf(w, "%s compiled in %s.\n", r.TopModule, elapsed)
	default:
		fmt.Fprintf(w, "%s is up to date (%s).\n", r.TopModule, elapsed)
	}
}

// printStatus prints the last recorded run. With a project it also says
// whether the next build would compile.
func printStatus(opts pipeline.Options) {
	cfg, err := config.NewConfig(opts.OutDir)
	if err != nil {
		die("load config: %v", err)
	}
	r, ok, err := pipeline.LoadState(cfg.StatePath())
	if err != nil {
		die("%v", err)
	}
	if !ok {
		fmt.Printf("No builds recorded in %s.\n", cfg.OutDir)
		return
	}
	fmt.Printf("Run %s: %s (%s)\n", r.RunID, r.Status, r.FinishedAt.Local().Format(time.RFC3339))
	fmt.Printf("Project: %s\n", r.Project)
	for _, st := range r.Stages {
		line := fmt.Sprintf("  %-8s %-8s %s", st.Stage, st.Status, st.Detail)
		if st.Error != "" {
			line += " " + firstLine(st.Error)
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
	if opts.ProjectFile == "" {
		return
	}
	reason, err := pipeline.Pending(opts)
	if err != nil {
		die("%v", err)
	}
	if reason == "" {
		fmt.Println("Compile: up to date")
		return
	}
	fmt.Printf("Compile: pending (%s)\n", reason)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

// Set accepts NAME=VALUE or a bare NAME, which defines NAME with no value.
func (kv *keyValueFlag) Set(value string) error {
	key, val, _ := strings.Cut(value, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("define name is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = val
	return nil
}
