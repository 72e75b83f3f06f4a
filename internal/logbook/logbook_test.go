package logbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestEntriesCarryRunAndLevel(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	book, err := New(filepath.Join(t.TempDir(), "logs", "build.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.now = clock
	run := book.WithRun("run-1")
	run.Error("compile failed\n%s", "line two")
	book.Warn("untagged")

	lines, total := book.Tail(10)
	if total != 3 {
		t.Fatalf("total = %d, want 3: %v", total, lines)
	}
	want := []string{
		"2024-03-01T12:00:00Z ERROR [run-1] compile failed",
		"2024-03-01T12:00:00Z ERROR [run-1] line two",
		"2024-03-01T12:00:00Z WARN  [-] untagged",
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if run.Path() != book.Path() || run.RunID() != "run-1" {
		t.Fatalf("child logbook should share the file")
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil logbook tail = %v, %d", lines, total)
	}
	if book.WithRun("x") != nil {
		t.Fatalf("nil logbook WithRun should stay nil")
	}
}
