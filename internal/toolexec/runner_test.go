package toolexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecRunnerCapturesOutputAndExitCode(t *testing.T) {
	sh := requireShell(t)
	var live bytes.Buffer
	res, err := NewExecRunner().Run(context.Background(), Invocation{
		Path:   sh,
		Args:   []string{"-c", "echo out; echo err 1>&2; exit 3"},
		Output: &live,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 || res.Success() {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if res.Tail(5) != "err" {
		t.Fatalf("tail = %q, want err", res.Tail(5))
	}
	if !strings.Contains(live.String(), "out") || !strings.Contains(live.String(), "err") {
		t.Fatalf("live output = %q", live.String())
	}
}

func TestExecRunnerRunsInDir(t *testing.T) {
	sh := requireShell(t)
	dir := t.TempDir()
	res, err := NewExecRunner().Run(context.Background(), Invocation{Path: sh, Args: []string{"-c", "pwd"}, Dir: dir})
	if err != nil || !res.Success() {
		t.Fatalf("run: %+v %v", res, err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(string(res.Stdout)))
	if got != want {
		t.Fatalf("pwd = %q, want %s", got, want)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	sh := requireShell(t)
	start := time.Now()
	_, err := NewExecRunner().Run(context.Background(), Invocation{
		Path:    sh,
		Args:    []string{"-c", "sleep 10"},
		Timeout: 100 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 8*time.Second {
		t.Fatalf("timeout did not stop the process promptly")
	}
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), Invocation{Path: "/nonexistent/tool"})
	if err == nil {
		t.Fatalf("expected start error")
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("start failure must not look like a timeout: %v", err)
	}
}

func TestResultTail(t *testing.T) {
	res := Result{Stdout: []byte("a\nb\nc\n")}
	if got := res.Tail(2); got != "b\nc" {
		t.Fatalf("tail = %q, want b\\nc", got)
	}
	if got := (Result{}).Tail(3); got != "" {
		t.Fatalf("empty tail = %q", got)
	}
}
