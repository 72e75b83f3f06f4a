package render

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/kingrea/rtlbuild/internal/artifact"
)

// WriteFilelist writes one path per line.
func WriteFilelist(path string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if err := artifact.WriteFileAtomic(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("render: write filelist %s: %w", path, err)
	}
	return nil
}

// ReadFilelist returns the paths listed in a filelist, skipping blank lines.
func ReadFilelist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("render: open filelist: %w", err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("render: read filelist %s: %w", path, err)
	}
	return paths, nil
}
