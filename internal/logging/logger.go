package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the transcript file created inside the logs directory.
const FileName = "tools.log"

// Logger appends timestamped lines to .rtlbuild/logs/tools.log so users can
// read the full output of a failed tool run after the terminal has moved on.
// It is an io.Writer: partial writes are buffered until a newline arrives.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	pending []byte
	now     func() time.Time
}

// New creates (or reuses) the transcript in logsDir.
func New(logsDir string) (*Logger, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logsDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{file: f, now: time.Now}, nil
}

// Path returns the transcript location.
func (l *Logger) Path() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close flushes any unterminated line and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) > 0 {
		l.writeLine(string(l.pending))
		l.pending = nil
	}
	return l.file.Close()
}

// Printf writes a single timestamped line to the log file.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeLine(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

// Write implements io.Writer. Every complete line becomes one entry.
func (l *Logger) Write(p []byte) (int, error) {
	if l == nil || l.file == nil {
		return len(p), nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			break
		}
		l.writeLine(strings.TrimRight(string(l.pending[:i]), "\r"))
		l.pending = l.pending[i+1:]
	}
	return len(p), nil
}

func (l *Logger) writeLine(line string) {
	fmt.Fprintf(l.file, "[%s] %s\n", l.now().Format(time.RFC3339), line)
}
