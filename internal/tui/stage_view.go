package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/rtlbuild/internal/pipeline"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	stageNameStyle    = lipgloss.NewStyle().Bold(true).Width(8)
	labelStyleDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	labelStyleDefault = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorBoxStyle     = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#FF6B6B")).
				Padding(0, 1)
)

// stageRow is the display state of one stage.
type stageRow struct {
	stage  pipeline.Stage
	status pipeline.Status
	detail string
}

func initialRows() []stageRow {
	rows := make([]stageRow, len(pipeline.Stages))
	for i, s := range pipeline.Stages {
		rows[i] = stageRow{stage: s, status: pipeline.StatusPending}
	}
	return rows
}

func labelStyleForStatus(status pipeline.Status) lipgloss.Style {
	switch status {
	case pipeline.StatusDone:
		return labelStyleDone
	case pipeline.StatusFailed:
		return labelStyleFailed
	case pipeline.StatusRunning:
		return labelStyleRunning
	case pipeline.StatusSkipped:
		return labelStyleSkipped
	default:
		return labelStyleDefault
	}
}

func statusIcon(status pipeline.Status) string {
	switch status {
	case pipeline.StatusDone:
		return "✓"
	case pipeline.StatusFailed:
		return "✗"
	case pipeline.StatusSkipped:
		return "-"
	default:
		return "·"
	}
}

// renderStageLine formats one stage. icon replaces the status icon when set,
// which is how the spinner is shown for the running stage.
func renderStageLine(row stageRow, icon string) string {
	style := labelStyleForStatus(row.status)
	if icon == "" {
		icon = style.Render(statusIcon(row.status))
	}
	line := fmt.Sprintf("%s %s %s", icon, stageNameStyle.Render(string(row.stage)), style.Render(string(row.status)))
	if detail := firstLine(row.detail); detail != "" {
		line += " " + detailTextStyle.Render(detail)
	}
	return line
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
