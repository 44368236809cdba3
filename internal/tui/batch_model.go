package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/engine/batch"
)

// BatchStartedMsg announces the run behind the view.
type BatchStartedMsg struct {
	RunID string
}

// BatchProgressMsg carries a progress snapshot from the coordinator.
type BatchProgressMsg struct {
	Snapshot batch.ProgressSnapshot
}

// BatchFinishedMsg is sent once the run's handle resolves.
type BatchFinishedMsg struct {
	Outcome *engine.Outcome
}

// progressBarMargin is the horizontal space reserved around the progress bar.
const progressBarMargin = 4

// BatchModel is the Bubble Tea model for a live batch run.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type BatchModel struct {
	runID string

	spinner  spinner.Model
	bar      progress.Model
	snapshot batch.ProgressSnapshot
	started  bool

	outcome  *engine.Outcome
	failures []FailureRow
	table    table.Model

	width    int
	detached bool
}

// NewBatchModel creates a model for a run that has not started yet.
func NewBatchModel() BatchModel {
	return BatchModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(HeaderStyle),
		),
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultWidth-progressBarMargin)),
		width: defaultWidth,
	}
}

// Init starts the spinner (Bubble Tea interface).
func (m BatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages (Bubble Tea interface).
func (m BatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-progressBarMargin, progressBarMargin)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.detached = m.outcome == nil
			return m, tea.Quit
		}
		return m, nil

	case BatchStartedMsg:
		m.runID = msg.RunID
		return m, nil

	case BatchProgressMsg:
		m.snapshot = msg.Snapshot
		m.started = true
		return m, nil

	case BatchFinishedMsg:
		m.outcome = msg.Outcome
		m.failures = FailureRows(msg.Outcome)
		if len(m.failures) > 0 {
			m.table = NewFailureTable(m.failures, defaultHeight)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if m.started {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the model (Bubble Tea interface).
func (m BatchModel) View() string {
	var b strings.Builder

	switch {
	case m.outcome != nil:
		b.WriteString(RenderBatchSummary(m.outcome, m.width))
		if len(m.failures) > 0 {
			b.WriteString("\n")
			b.WriteString(m.table.View())
		}
		b.WriteString("\n")

	case !m.started:
		b.WriteString("\n ")
		b.WriteString(m.spinner.View())
		b.WriteString(" Starting batch run ")
		b.WriteString(SubtleStyle.Render(m.runID))
		b.WriteString("\n\n")

	default:
		b.WriteString("\n ")
		b.WriteString(HeaderStyle.Render("Processing records"))
		b.WriteString(" ")
		b.WriteString(SubtleStyle.Render(m.runID))
		b.WriteString("\n\n ")
		b.WriteString(m.bar.ViewAs(m.snapshot.Ratio()))
		b.WriteString("\n\n ")
		b.WriteString(RenderProgressLine(m.snapshot))
		b.WriteString("\n\n ")
		b.WriteString(SubtleStyle.Render("q: detach"))
		b.WriteString("\n")
	}

	return b.String()
}

// Outcome returns the run outcome once it has been received.
func (m BatchModel) Outcome() *engine.Outcome {
	return m.outcome
}

// Detached reports whether the user closed the view before the run finished.
func (m BatchModel) Detached() bool {
	return m.detached
}
