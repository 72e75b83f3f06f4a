// internal/config/config.go
//
// This package handles tool configuration and the build directory layout.
// Every output directory that rtlbuild writes to gets a .rtlbuild/ folder
// holding the tool configuration and the build journal.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	// StateDir is the name of the directory we create in each output directory
	StateDir = ".rtlbuild"

	defaultVerilator = "verilator"
	defaultOptimizer = "yosys-abc"
	defaultTimeout   = 10 * time.Minute

	DefaultBeginMarker = "PLA_BEGIN"
	DefaultEndMarker   = "PLA_END"

	envVerilator = "RTLBUILD_VERILATOR"
	envOptimizer = "RTLBUILD_OPTIMIZER"
)

// DefaultOptimizerScript is the driver script handed to the logic optimizer.
// Each line is a text/template with .Input and .Output available.
var DefaultOptimizerScript = []string{
	"read_pla {{ .Input }}",
	"collapse",
	"sop",
	"write_pla {{ .Output }}",
}

const defaultToolConfigYAML = `# rtlbuild tool configuration
version: 1

tools:
  # Hardware-simulation compiler, invoked as: <verilator> -f vc.f
  verilator: verilator
  # Logic optimizer, invoked as: <optimizer> -f driver.abc
  optimizer: yosys-abc
  # Upper bound on any single tool invocation. 0 disables the bound.
  timeout: 10m

optimizer:
  script:
    - read_pla {{ .Input }}
    - collapse
    - sop
    - write_pla {{ .Output }}

render:
  # Number of sources rendered concurrently. 0 uses the number of CPUs.
  jobs: 0
  markers:
    begin: PLA_BEGIN
    end: PLA_END
`

// ToolsConfig names the external executables.
type ToolsConfig struct {
	Verilator string `yaml:"verilator"`
	Optimizer string `yaml:"optimizer"`
	Timeout   string `yaml:"timeout,omitempty"`
}

// OptimizerConfig carries the driver script template.
type OptimizerConfig struct {
	Script []string `yaml:"script,omitempty"`
}

// MarkerConfig names the region delimiters.
type MarkerConfig struct {
	Begin string `yaml:"begin"`
	End   string `yaml:"end"`
}

// RenderConfig tunes the source renderer.
type RenderConfig struct {
	Jobs    int          `yaml:"jobs"`
	Markers MarkerConfig `yaml:"markers"`
}

// ToolConfig models .rtlbuild/config.yaml.
type ToolConfig struct {
	Version   int             `yaml:"version"`
	Tools     ToolsConfig     `yaml:"tools"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Render    RenderConfig    `yaml:"render"`
}

// Config holds the runtime configuration for one output directory.
type Config struct {
	// OutDir is the root all generated files live under
	OutDir string

	// StateDir is OutDir/.rtlbuild
	StateDir string

	Tool ToolConfig

	timeout time.Duration
}

// InitBuildDir creates the output directory structure.
//
// Structure created:
// <out>/
// ├── rtl/              <- staged (rendered) sources
// └── .rtlbuild/
//
//	├── config.yaml   <- tool configuration
//	├── state.json    <- snapshot of the last run
//	└── logs/         <- build journal and tool transcript
func InitBuildDir(outDir string) error {
	stateDir := filepath.Join(outDir, StateDir)
	dirs := []string{
		filepath.Join(outDir, "rtl"),
		filepath.Join(stateDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureToolConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig creates a Config for outDir, reading .rtlbuild/config.yaml when present.
func NewConfig(outDir string) (*Config, error) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", outDir, err)
	}
	cfg := &Config{
		OutDir:   abs,
		StateDir: filepath.Join(abs, StateDir),
		Tool:     defaultToolConfig(),
	}
	if err := cfg.loadToolConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// RTLDir returns the staging directory for rendered sources
func (c *Config) RTLDir() string {
	return filepath.Join(c.OutDir, "rtl")
}

// VerilatedDir returns the compiler's private output directory
func (c *Config) VerilatedDir() string {
	return filepath.Join(c.OutDir, "verilated")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// JournalPath returns the build journal written by the logbook.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "build.log")
}

// StatePath returns the snapshot of the most recent run.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir, "state.json")
}

// FilelistPath returns the location of the generated filelist.
func (c *Config) FilelistPath() string {
	return filepath.Join(c.OutDir, "rtl.f")
}

// CommandFilePath returns the location of the generated compiler command file.
func (c *Config) CommandFilePath() string {
	return filepath.Join(c.OutDir, "vc.f")
}

// SentinelPath returns the marker written after a successful compile.
func (c *Config) SentinelPath() string {
	return filepath.Join(c.OutDir, "vc.f.timestamp")
}

// ToolConfigPath returns the on-disk location of the tool config file.
func (c *Config) ToolConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// Timeout is the bound applied to each external tool invocation. Zero means unbounded.
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// SetTimeout overrides the configured tool timeout.
func (c *Config) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	c.timeout = d
}

// Jobs returns the render concurrency.
func (c *Config) Jobs() int {
	if c.Tool.Render.Jobs > 0 {
		return c.Tool.Render.Jobs
	}
	return runtime.NumCPU()
}

func (c *Config) loadToolConfig() error {
	path := c.ToolConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.timeout = defaultTimeout
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ToolConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	timeout, err := parsed.validate()
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}

	c.Tool = parsed
	c.timeout = timeout
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envVerilator)); v != "" {
		c.Tool.Tools.Verilator = v
	}
	if v := strings.TrimSpace(os.Getenv(envOptimizer)); v != "" {
		c.Tool.Tools.Optimizer = v
	}
}

func defaultToolConfig() ToolConfig {
	tc := ToolConfig{Version: 1}
	tc.applyDefaults()
	return tc
}

func (tc *ToolConfig) applyDefaults() {
	if tc.Version == 0 {
		tc.Version = 1
	}
	if strings.TrimSpace(tc.Tools.Verilator) == "" {
		tc.Tools.Verilator = defaultVerilator
	}
	if strings.TrimSpace(tc.Tools.Optimizer) == "" {
		tc.Tools.Optimizer = defaultOptimizer
	}
	if strings.TrimSpace(tc.Tools.Timeout) == "" {
		tc.Tools.Timeout = defaultTimeout.String()
	}
	if len(tc.Optimizer.Script) == 0 {
		tc.Optimizer.Script = append([]string{}, DefaultOptimizerScript...)
	}
	if strings.TrimSpace(tc.Render.Markers.Begin) == "" {
		tc.Render.Markers.Begin = DefaultBeginMarker
	}
	if strings.TrimSpace(tc.Render.Markers.End) == "" {
		tc.Render.Markers.End = DefaultEndMarker
	}
}

func (tc *ToolConfig) normalize() {
	tc.Tools.Verilator = strings.TrimSpace(tc.Tools.Verilator)
	tc.Tools.Optimizer = strings.TrimSpace(tc.Tools.Optimizer)
	tc.Tools.Timeout = strings.TrimSpace(tc.Tools.Timeout)
	tc.Render.Markers.Begin = strings.TrimSpace(tc.Render.Markers.Begin)
	tc.Render.Markers.End = strings.TrimSpace(tc.Render.Markers.End)
	script := tc.Optimizer.Script[:0]
	for _, line := range tc.Optimizer.Script {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			script = append(script, trimmed)
		}
	}
	tc.Optimizer.Script = script
}

func (tc *ToolConfig) validate() (time.Duration, error) {
	var result *multierror.Error
	if tc.Version < 1 {
		result = multierror.Append(result, fmt.Errorf("config version must be >= 1"))
	}
	timeout, err := time.ParseDuration(tc.Tools.Timeout)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("tools.timeout: %w", err))
	} else if timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("tools.timeout must not be negative"))
	}
	if tc.Render.Jobs < 0 {
		result = multierror.Append(result, fmt.Errorf("render.jobs must be >= 0"))
	}
	if tc.Render.Markers.Begin == tc.Render.Markers.End {
		result = multierror.Append(result, fmt.Errorf("render.markers.begin and render.markers.end must differ"))
	}
	if len(tc.Optimizer.Script) == 0 {
		result = multierror.Append(result, fmt.Errorf("optimizer.script must not be empty"))
	}
	return timeout, result.ErrorOrNil()
}

func ensureToolConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultToolConfigYAML), 0o644)
}
