package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/rtlbuild/internal/pipeline"
)

func feed(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	var model tea.Model = m
	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}
	out, ok := model.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", model)
	}
	return out
}

func TestModelTracksStageEvents(t *testing.T) {
	m := NewModel(make(chan pipeline.Event), nil)
	m = feed(t, m,
		eventMsg{RunID: "run-7", Stage: pipeline.StageLoad, Status: pipeline.StatusRunning},
		eventMsg{RunID: "run-7", Stage: pipeline.StageLoad, Status: pipeline.StatusDone, Detail: "top cpu, 2 sources"},
		eventMsg{RunID: "run-7", Stage: pipeline.StageRender, Status: pipeline.StatusRunning},
	)
	view := m.View()
	for _, want := range []string{"RTLBUILD", "run run-7", "top cpu, 2 sources", "running", "pending", "q=abort"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
	if m.rows[0].status != pipeline.StatusDone || m.rows[1].status != pipeline.StatusRunning || m.rows[2].status != pipeline.StatusPending {
		t.Fatalf("rows = %+v", m.rows)
	}
}

func TestModelShowsFailure(t *testing.T) {
	m := NewModel(make(chan pipeline.Event), nil)
	m = feed(t, m,
		eventMsg{Stage: pipeline.StageCompile, Status: pipeline.StatusFailed, Detail: "verilator: compile failed: exit 1\n%Error: a.sv:3"},
		finishedMsg{},
	)
	if !m.Done() {
		t.Fatalf("model should be done after the stream closes")
	}
	view := m.View()
	if !strings.Contains(view, "%Error: a.sv:3") {
		t.Fatalf("failure box missing compiler output:\n%s", view)
	}
	if strings.Contains(view, "q=abort") {
		t.Fatalf("finished view should not offer abort")
	}
}

func TestModelQuitCancelsRunningBuild(t *testing.T) {
	cancelled := false
	m := NewModel(make(chan pipeline.Event), func() { cancelled = true })
	var model tea.Model = m
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !cancelled || !model.(Model).Aborted() {
		t.Fatalf("quit should cancel the build")
	}
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan pipeline.Event, 1)
	ch <- pipeline.Event{Stage: pipeline.StageRender, Status: pipeline.StatusDone}
	if msg, ok := waitForEvent(ch)().(eventMsg); !ok || msg.Stage != pipeline.StageRender {
		t.Fatalf("unexpected message %#v", msg)
	}
	close(ch)
	if _, ok := waitForEvent(ch)().(finishedMsg); !ok {
		t.Fatalf("closed stream should finish")
	}
}

func TestChannelObserverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan pipeline.Event)
	cancel()
	done := make(chan struct{})
	go func() {
		ChannelObserver(ctx, ch).Observe(pipeline.Event{Stage: pipeline.StageLoad})
		close(done)
	}()
	<-done
}

func TestPlainObserverPrintsTerminalEvents(t *testing.T) {
	var buf bytes.Buffer
	obs := PlainObserver(&buf)
	obs.Observe(pipeline.Event{Stage: pipeline.StageLoad, Status: pipeline.StatusRunning})
	obs.Observe(pipeline.Event{Stage: pipeline.StageLoad, Status: pipeline.StatusDone, Detail: "top cpu"})
	obs.Observe(pipeline.Event{Stage: pipeline.StageCompile, Status: pipeline.StatusSkipped, Detail: "up to date"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[0], "load") || !strings.Contains(lines[0], "top cpu") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "compile") || !strings.Contains(lines[1], "up to date") {
		t.Fatalf("line 1 = %q", lines[1])
	}
}
