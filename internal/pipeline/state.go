package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/kingrea/rtlbuild/internal/artifact"
)

// StageReport captures how one stage ended.
type StageReport struct {
	Stage    Stage         `json:"stage"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is the outcome of a Run. It is persisted as .rtlbuild/state.json.
type Report struct {
	RunID      string        `json:"run_id"`
	Project    string        `json:"project"`
	TopModule  string        `json:"top_module,omitempty"`
	Status     Status        `json:"status"`
	Stages     []StageReport `json:"stages"`
	Artifacts  []string      `json:"artifacts,omitempty"`
	Rendered   int           `json:"rendered"`
	Compiled   bool          `json:"compiled"`
	Reason     string        `json:"reason,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Stage returns the report for s, if the stage ran.
func (r Report) Stage(s Stage) (StageReport, bool) {
	for _, st := range r.Stages {
		if st.Stage == s {
			return st, true
		}
	}
	return StageReport{}, false
}

// SaveState writes the report atomically.
func SaveState(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: encode state: %w", err)
	}
	if err := artifact.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("pipeline: write state: %w", err)
	}
	return nil
}

// LoadState reads the last saved report. A missing file yields ok=false.
func LoadState(path string) (Report, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Report{}, false, nil
		}
		return Report{}, false, fmt.Errorf("pipeline: read state: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, false, fmt.Errorf("pipeline: parse state %s: %w", path, err)
	}
	return r, true, nil
}
