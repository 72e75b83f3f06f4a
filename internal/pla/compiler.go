package pla

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kingrea/rtlbuild/internal/toolexec"
)

// Workspace file names inside the per-invocation temp directory.
const (
	inputFile  = "region.pla"
	driverFile = "driver.abc"
	outputFile = "optimized.pla"
)

// Block is one delimited region as found in a source file.
type Block struct {
	// Label is the optional name written after the begin marker.
	Label string
	// Indent is the leading whitespace of the begin marker line.
	Indent string
	// Lines are the raw lines between the markers.
	Lines []string
}

// Compiler turns blocks into SystemVerilog by way of an external optimizer.
// It holds no per-call state and is safe for concurrent use.
type Compiler struct {
	Runner     toolexec.Runner
	Executable string
	Script     []string
	Timeout    time.Duration
	// TempRoot is where per-invocation workspaces are created; empty means os.TempDir.
	TempRoot string
	// Output, when set, receives the optimizer's console output.
	Output io.Writer
}

// Compile parses the block, runs the optimizer in a private workspace and
// returns the replacement lines. No partial output is returned on failure.
func (c *Compiler) Compile(ctx context.Context, block Block) ([]string, error) {
	region, err := ParseRegion(block.Lines)
	if err != nil {
		return nil, err
	}
	if c.Runner == nil || strings.TrimSpace(c.Executable) == "" {
		return nil, fmt.Errorf("pla: compiler has no optimizer configured")
	}

	workdir, err := os.MkdirTemp(c.TempRoot, "pla-*")
	if err != nil {
		return nil, fmt.Errorf("pla: create workspace: %w", err)
	}
	defer os.RemoveAll(workdir)

	inPath := filepath.Join(workdir, inputFile)
	outPath := filepath.Join(workdir, outputFile)
	driverPath := filepath.Join(workdir, driverFile)

	if err := writeRegion(inPath, region); err != nil {
		return nil, err
	}
	driver, err := RenderDriver(c.Script, ScriptParams{Input: inPath, Output: outPath})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(driverPath, []byte(driver), 0o644); err != nil {
		return nil, fmt.Errorf("pla: write driver script: %w", err)
	}

	inv := toolexec.Invocation{
		Path:    c.Executable,
		Args:    []string{"-f", driverPath},
		Dir:     workdir,
		Timeout: c.Timeout,
		Output:  c.Output,
	}
	res, err := c.Runner.Run(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOptimizationFailed, labelOrDefault(block.Label), err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("%w: %s: %s exited with status %d\n%s",
			ErrOptimizationFailed, labelOrDefault(block.Label), c.Executable, res.ExitCode, res.Tail(10))
	}

	f, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: optimizer produced no output: %v", ErrOptimizationFailed, labelOrDefault(block.Label), err)
	}
	defer f.Close()
	cover, err := ParseOptimized(f)
	if err != nil {
		return nil, err
	}
	return region.Emit(cover, block.Label, block.Indent)
}

func writeRegion(path string, region *Region) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pla: write minimization input: %w", err)
	}
	if err := region.WritePLA(f); err != nil {
		f.Close()
		return fmt.Errorf("pla: write minimization input: %w", err)
	}
	return f.Close()
}
