package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/rtlbuild/internal/pipeline"
)

func TestKeyValueFlag(t *testing.T) {
	kv := keyValueFlag{}
	for _, v := range []string{"WIDTH=8", "SIM", "EXPR=a=b"} {
		if err := kv.Set(v); err != nil {
			t.Fatalf("set %q: %v", v, err)
		}
	}
	if kv["WIDTH"] != "8" || kv["SIM"] != "" || kv["EXPR"] != "a=b" {
		t.Fatalf("parsed = %v", kv)
	}
	if got := kv.String(); got != "EXPR=a=b, SIM=, WIDTH=8" {
		t.Fatalf("String() = %q", got)
	}
	if err := kv.Set("=1"); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	summarize(&buf, pipeline.Report{TopModule: "cpu", Compiled: true, StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond)})
	if !strings.Contains(buf.String(), "cpu compiled in 1.5s") {
		t.Fatalf("summary = %q", buf.String())
	}
	buf.Reset()
	summarize(&buf, pipeline.Report{TopModule: "cpu", StartedAt: start, FinishedAt: start})
	if !strings.Contains(buf.String(), "cpu is up to date") {
		t.Fatalf("summary = %q", buf.String())
	}
}
