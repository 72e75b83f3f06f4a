// internal/tui/app.go
//
// Interactive build progress. The model follows The Elm Architecture:
// pipeline events arrive as messages, Update folds them into the stage rows,
// and View renders one line per stage with a spinner on the running one.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/rtlbuild/internal/pipeline"
)

// eventMsg carries one pipeline event into the program.
type eventMsg pipeline.Event

// finishedMsg is delivered once the event stream is closed.
type finishedMsg struct{}

// Model renders pipeline progress.
type Model struct {
	events  <-chan pipeline.Event
	cancel  context.CancelFunc
	spinner spinner.Model
	rows    []stageRow
	runID   string
	failure string
	done    bool
	aborted bool
}

// NewModel returns a model reading from events. cancel, when set, is called if
// the user quits before the build finishes.
func NewModel(events <-chan pipeline.Event, cancel context.CancelFunc) Model {
	return Model{
		events:  events,
		cancel:  cancel,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(labelStyleRunning)),
		rows:    initialRows(),
	}
}

// Init starts the spinner and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.done {
				m.aborted = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		}
	case eventMsg:
		m.apply(pipeline.Event(msg))
		return m, waitForEvent(m.events)
	case finishedMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(e pipeline.Event) {
	if e.RunID != "" {
		m.runID = e.RunID
	}
	for i := range m.rows {
		if m.rows[i].stage == e.Stage {
			m.rows[i].status = e.Status
			m.rows[i].detail = e.Detail
		}
	}
	if e.Status == pipeline.StatusFailed {
		m.failure = e.Detail
	}
}

// View renders the stage list.
func (m Model) View() string {
	header := titleStyle.Render("⬡ RTLBUILD")
	if m.runID != "" {
		header += " " + hintStyle.Render("run "+m.runID)
	}
	lines := []string{header, ""}
	for _, row := range m.rows {
		icon := ""
		if row.status == pipeline.StatusRunning {
			icon = m.spinner.View()
		}
		lines = append(lines, renderStageLine(row, icon))
	}
	if m.failure != "" {
		lines = append(lines, "", errorBoxStyle.Render(m.failure))
	}
	if !m.done {
		lines = append(lines, "", hintStyle.Render("q=abort"))
	}
	return strings.Join(lines, "\n") + "\n"
}

// Done reports whether the event stream finished.
func (m Model) Done() bool { return m.done }

// Aborted reports whether the user quit before the build finished.
func (m Model) Aborted() bool { return m.aborted }

func waitForEvent(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return finishedMsg{}
		}
		return eventMsg(e)
	}
}

// ChannelObserver forwards events to ch until ctx is done.
func ChannelObserver(ctx context.Context, ch chan<- pipeline.Event) pipeline.Observer {
	return pipeline.ObserverFunc(func(e pipeline.Event) {
		select {
		case ch <- e:
		case <-ctx.Done():
		}
	})
}

// ErrAborted is returned by Watch when the user quits mid-build.
var ErrAborted = errors.New("tui: build aborted")

// Watch runs the pipeline while showing the interactive view. Tool output is
// not echoed to the terminal; it still reaches the transcript.
func Watch(ctx context.Context, opts pipeline.Options) (pipeline.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan pipeline.Event, 16)
	opts.Observer = pipeline.Multi(opts.Observer, ChannelObserver(ctx, events))
	opts.Output = nil

	var (
		report pipeline.Report
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		defer close(events)
		report, runErr = pipeline.Run(ctx, opts)
	}()

	final, err := tea.NewProgram(NewModel(events, cancel)).Run()
	if err != nil {
		cancel()
		<-done
		return report, fmt.Errorf("tui: %w", err)
	}
	<-done
	if m, ok := final.(Model); ok && m.Aborted() && runErr != nil {
		return report, fmt.Errorf("%w: %w", ErrAborted, runErr)
	}
	return report, runErr
}
