// Package render stages project sources for compilation. Each declared source
// is copied into the staging directory with its embedded truth-table regions
// replaced by generated logic, and the ordered list of staged files is written
// to a filelist.
package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/rtlbuild/internal/artifact"
	"github.com/kingrea/rtlbuild/internal/pla"
	"github.com/kingrea/rtlbuild/internal/project"
)

var (
	// ErrSourceNotFound is returned when a declared source does not exist.
	ErrSourceNotFound = errors.New("render: source not found")
	// ErrStagingCollision is returned when two different sources would be
	// staged under the same name.
	ErrStagingCollision = errors.New("render: staging collision")
)

// RegionCompiler produces the replacement lines for one region.
type RegionCompiler interface {
	Compile(ctx context.Context, block pla.Block) ([]string, error)
}

// Options configure a Renderer.
type Options struct {
	// StagingDir receives the rendered copies.
	StagingDir string
	// FilelistPath is where the ordered list of staged paths is written.
	FilelistPath string
	Markers      pla.Markers
	Compiler     RegionCompiler
	// Jobs bounds how many sources render at once; zero means the number of CPUs.
	Jobs int
	// Dependencies are files that shape every staged copy, such as the tool
	// configuration. A staged copy older than any of them is re-rendered.
	// Missing dependencies are ignored.
	Dependencies []string
	// OnArtifact, when set, is called once per distinct source after it is handled.
	// It may be called from several goroutines.
	OnArtifact func(Artifact)
}

// Artifact describes one declared source and its staged copy.
type Artifact struct {
	Source string
	Staged string
	// Rendered is true when the staged copy was (re)written by this call.
	Rendered bool
	// Regions counts the regions expanded while rendering.
	Regions int
}

// Result summarises a Render call.
type Result struct {
	// Changed is true when any staged copy was rewritten.
	Changed      bool
	FilelistPath string
	// Artifacts follow declaration order, one per declared source.
	Artifacts []Artifact
}

// Paths returns the staged paths in filelist order.
func (r Result) Paths() []string {
	out := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		out[i] = a.Staged
	}
	return out
}

// Renderer stages sources. It is safe to reuse across calls but not for
// concurrent calls against the same staging directory.
type Renderer struct {
	opts Options
}

// New returns a renderer. Unset markers fall back to pla.DefaultMarkers.
func New(opts Options) *Renderer {
	if opts.Markers.Begin == "" || opts.Markers.End == "" {
		opts.Markers = pla.DefaultMarkers
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	return &Renderer{opts: opts}
}

// Render brings every staged copy up to date with its source and rewrites the
// filelist. On error no filelist is written.
func (r *Renderer) Render(ctx context.Context, desc project.Descriptor) (Result, error) {
	if r.opts.StagingDir == "" || r.opts.FilelistPath == "" {
		return Result{}, fmt.Errorf("render: staging dir and filelist path are required")
	}
	sources := desc.Sources()
	staged, unique, err := r.plan(sources)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(r.opts.StagingDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("render: create staging dir: %w", err)
	}

	done := make([]Artifact, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Jobs)
	for i, src := range unique {
		i, src := i, src
		g.Go(func() error {
			a, err := r.renderOne(gctx, src, staged[src])
			if err != nil {
				return err
			}
			done[i] = a
			if r.opts.OnArtifact != nil {
				r.opts.OnArtifact(a)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	bySource := make(map[string]Artifact, len(done))
	result := Result{FilelistPath: r.opts.FilelistPath}
	for _, a := range done {
		bySource[a.Source] = a
		result.Changed = result.Changed || a.Rendered
	}
	for _, src := range sources {
		result.Artifacts = append(result.Artifacts, bySource[filepath.Clean(src)])
	}
	if err := WriteFilelist(r.opts.FilelistPath, result.Paths()); err != nil {
		return Result{}, err
	}
	return result, nil
}

// plan maps each source to its staged path and returns the distinct sources in
// first-declaration order.
func (r *Renderer) plan(sources []string) (map[string]string, []string, error) {
	staged := make(map[string]string, len(sources))
	owner := make(map[string]string, len(sources))
	var unique []string
	for _, src := range sources {
		src = filepath.Clean(src)
		if _, ok := staged[src]; ok {
			continue
		}
		dst := filepath.Join(r.opts.StagingDir, filepath.Base(src))
		if prev, ok := owner[dst]; ok {
			return nil, nil, fmt.Errorf("%w: %s and %s both stage to %s", ErrStagingCollision, prev, src, dst)
		}
		owner[dst] = src
		staged[src] = dst
		unique = append(unique, src)
	}
	return staged, unique, nil
}

func (r *Renderer) renderOne(ctx context.Context, src, dst string) (Artifact, error) {
	a := Artifact{Source: src, Staged: dst}
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return a, fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return a, fmt.Errorf("render: stat %s: %w", src, err)
	}
	if info.IsDir() {
		return a, fmt.Errorf("render: %s is a directory", src)
	}
	fresh, err := r.fresh(src, dst)
	if err != nil {
		return a, fmt.Errorf("render: check %s: %w", dst, err)
	}
	if fresh {
		return a, nil
	}
	if err := ctx.Err(); err != nil {
		return a, err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return a, fmt.Errorf("render: read %s: %w", src, err)
	}
	out, regions, err := r.splice(ctx, src, string(data))
	if err != nil {
		return a, err
	}
	if err := artifact.WriteFileAtomic(dst, []byte(out), info.Mode().Perm()); err != nil {
		return a, fmt.Errorf("render: write %s: %w", dst, err)
	}
	a.Rendered = true
	a.Regions = regions
	return a, nil
}

// fresh reports whether dst is at least as new as src and every dependency.
func (r *Renderer) fresh(src, dst string) (bool, error) {
	ok, err := artifact.Fresh(src, dst)
	if err != nil || !ok {
		return ok, err
	}
	for _, dep := range r.opts.Dependencies {
		ok, err := artifact.Fresh(dep, dst)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

type openRegion struct {
	line   int
	label  string
	indent string
	lines  []string
}

// splice copies text line by line, replacing each delimited region (markers
// included) with the compiler's output. Text outside regions is preserved
// byte for byte, line terminators included.
func (r *Renderer) splice(ctx context.Context, name, text string) (string, int, error) {
	var b strings.Builder
	b.Grow(len(text))
	var open *openRegion
	regions := 0
	for i, raw := range strings.SplitAfter(text, "\n") {
		if raw == "" {
			continue
		}
		lineNo := i + 1
		line := strings.TrimRight(raw, "\r\n")
		if open == nil {
			if label, indent, ok := r.opts.Markers.MatchBegin(line); ok {
				open = &openRegion{line: lineNo, label: label, indent: indent}
				continue
			}
			if r.opts.Markers.MatchEnd(line) {
				return "", 0, fmt.Errorf("%w: %s:%d: %s without a matching %s",
					pla.ErrMalformedRegion, name, lineNo, r.opts.Markers.End, r.opts.Markers.Begin)
			}
			b.WriteString(raw)
			continue
		}
		if _, _, ok := r.opts.Markers.MatchBegin(line); ok {
			return "", 0, fmt.Errorf("%w: %s:%d: %s inside the region opened at line %d",
				pla.ErrMalformedRegion, name, lineNo, r.opts.Markers.Begin, open.line)
		}
		if !r.opts.Markers.MatchEnd(line) {
			open.lines = append(open.lines, line)
			continue
		}
		if r.opts.Compiler == nil {
			return "", 0, fmt.Errorf("render: %s:%d: no region compiler configured", name, open.line)
		}
		replacement, err := r.opts.Compiler.Compile(ctx, pla.Block{Label: open.label, Indent: open.indent, Lines: open.lines})
		if err != nil {
			return "", 0, fmt.Errorf("render: %s:%d: %w", name, open.line, err)
		}
		eol := raw[len(line):]
		if eol == "" {
			eol = "\n"
		}
		for _, out := range replacement {
			b.WriteString(out)
			b.WriteString(eol)
		}
		open = nil
		regions++
	}
	if open != nil {
		return "", 0, fmt.Errorf("%w: %s:%d: region opened by %s is never closed by %s",
			pla.ErrMalformedRegion, name, open.line, r.opts.Markers.Begin, r.opts.Markers.End)
	}
	return b.String(), regions, nil
}
