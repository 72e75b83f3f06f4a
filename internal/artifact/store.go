package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// markerBody is written into sentinel markers; readers never parse it.
const markerBody = "COMPILED"

// Store performs artifact IO and freshness checks.
type Store struct {
	// now stamps marker bodies
	now func() time.Time
}

// NewStore builds a store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Check inspects the artifact on disk and returns its status.
func (s *Store) Check(path string, kind Kind) (CheckResult, error) {
	if path == "" {
		err := fmt.Errorf("artifact: path is required")
		return CheckResult{Path: path, Kind: kind, State: StateError, Err: err}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Path: path, Kind: kind, State: StateMissing}, nil
		}
		return CheckResult{Path: path, Kind: kind, State: StateError, Err: err}, err
	}
	switch kind {
	case KindDirectory:
		if !info.IsDir() {
			return invalidResult(path, kind, fmt.Errorf("artifact: %s: expected directory", path))
		}
	default:
		if info.IsDir() {
			return invalidResult(path, kind, fmt.Errorf("artifact: %s: expected file got directory", path))
		}
	}
	return CheckResult{Path: path, Kind: kind, State: StateReady}, nil
}

// CheckSentinel reports StateMissing when either file is absent, StateStale
// when the artifact is newer than its marker and StateReady otherwise.
func (s *Store) CheckSentinel(sen Sentinel) (State, error) {
	if err := sen.Validate(); err != nil {
		return StateError, err
	}
	artifactInfo, err := s.stat(sen.Artifact, KindFile)
	if err != nil || artifactInfo == nil {
		return stateFor(artifactInfo, err), err
	}
	markerInfo, err := s.stat(sen.Marker, KindMarker)
	if err != nil || markerInfo == nil {
		return stateFor(markerInfo, err), err
	}
	if artifactInfo.ModTime().After(markerInfo.ModTime()) {
		return StateStale, nil
	}
	return StateReady, nil
}

// Touch writes the sentinel marker. The marker's modification time is never
// left behind the artifact's, even on filesystems with coarse timestamps.
func (s *Store) Touch(sen Sentinel) error {
	if err := sen.Validate(); err != nil {
		return err
	}
	body := fmt.Sprintf("%s %s\n", markerBody, s.now().UTC().Format(time.RFC3339))
	if err := WriteFileAtomic(sen.Marker, []byte(body), 0o644); err != nil {
		return fmt.Errorf("artifact: write marker %s: %w", sen.Marker, err)
	}
	artifactInfo, err := os.Stat(sen.Artifact)
	if err != nil {
		return fmt.Errorf("artifact: stat %s: %w", sen.Artifact, err)
	}
	markerInfo, err := os.Stat(sen.Marker)
	if err != nil {
		return fmt.Errorf("artifact: stat %s: %w", sen.Marker, err)
	}
	if markerInfo.ModTime().Before(artifactInfo.ModTime()) {
		mtime := artifactInfo.ModTime()
		if err := os.Chtimes(sen.Marker, mtime, mtime); err != nil {
			return fmt.Errorf("artifact: adjust marker time %s: %w", sen.Marker, err)
		}
	}
	return nil
}

// Invalidate removes the sentinel marker so the next check reports StateMissing.
func (s *Store) Invalidate(sen Sentinel) error {
	if err := os.Remove(sen.Marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("artifact: remove marker %s: %w", sen.Marker, err)
	}
	return nil
}

// Fresh reports whether dst exists and src is not newer than it.
func Fresh(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !srcInfo.ModTime().After(dstInfo.ModTime()), nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it into
// place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (s *Store) stat(path string, kind Kind) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("artifact: %s: expected %s got directory", path, kind)
	}
	return info, nil
}

func stateFor(info fs.FileInfo, err error) State {
	if err != nil {
		return StateError
	}
	if info == nil {
		return StateMissing
	}
	return StateReady
}

func invalidResult(path string, kind Kind, err error) (CheckResult, error) {
	return CheckResult{Path: path, Kind: kind, State: StateInvalid, Err: err}, err
}
