// Package artifact defines the filesystem-level contracts between build
// stages: generated artifacts, the sentinel markers that record a successful
// downstream run, and the freshness checks that decide whether a stage reruns.

package artifact

import (
	"fmt"
	"path/filepath"
)

// Kind captures the storage shape of an artifact.
type Kind string

const (
	// KindFile represents a regular generated file.
	KindFile Kind = "file"
	// KindMarker represents a file whose content is never parsed; only its
	// existence and modification time matter.
	KindMarker Kind = "marker"
	// KindDirectory represents a directory that must exist.
	KindDirectory Kind = "directory"
)

// State captures the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateStale   State = "stale"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// CheckResult captures Store.Check results.
type CheckResult struct {
	Path  string
	Kind  Kind
	State State
	Err   error
}

// Sentinel pairs a generated artifact with the marker written after the
// downstream tool consumed it successfully. The marker is only trustworthy
// when it is not older than the artifact.
type Sentinel struct {
	Artifact string
	Marker   string
}

// NewSentinel builds a sentinel for artifact using the conventional
// "<artifact>.timestamp" marker name.
func NewSentinel(artifact string) Sentinel {
	clean := filepath.Clean(artifact)
	return Sentinel{Artifact: clean, Marker: clean + ".timestamp"}
}

// Validate ensures the sentinel is well-formed.
func (s Sentinel) Validate() error {
	if s.Artifact == "" {
		return fmt.Errorf("artifact: sentinel artifact path is required")
	}
	if s.Marker == "" {
		return fmt.Errorf("artifact: sentinel marker path is required for %s", s.Artifact)
	}
	if filepath.Clean(s.Artifact) == filepath.Clean(s.Marker) {
		return fmt.Errorf("artifact: sentinel marker must differ from %s", s.Artifact)
	}
	return nil
}
