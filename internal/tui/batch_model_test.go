package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/engine/batch"
	"github.com/rshade/recbatch/internal/record"
)

func failedOutcome() *engine.Outcome {
	agg := &engine.AggregateError{
		RunID: "01RUN",
		Errors: map[int64]error{
			9: &engine.UnitError{RecordID: 9, Kind: engine.KindPersistence, Cause: errors.New("disk full")},
			2: &engine.UnitError{RecordID: 2, Kind: engine.KindProcessing, Cause: context.DeadlineExceeded},
		},
	}
	return &engine.Outcome{
		RunID:     "01RUN",
		State:     engine.StatePartialFailure,
		Err:       agg,
		Total:     1500,
		Attempted: 1500,
		Processed: 1498,
		Failed:    2,
		Duration:  1234 * time.Millisecond,
	}
}

func isQuit(t *testing.T, cmd tea.Cmd) bool {
	t.Helper()
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestBatchModel_Lifecycle(t *testing.T) {
	m := NewBatchModel()
	require.NotNil(t, m.Init())

	updated, cmd := m.Update(BatchStartedMsg{RunID: "01RUN"})
	assert.Nil(t, cmd)
	m = updated.(BatchModel)
	assert.Contains(t, m.View(), "Starting batch run")
	assert.Contains(t, m.View(), "01RUN")

	updated, cmd = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	m = updated.(BatchModel)
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 116, m.bar.Width)

	updated, _ = m.Update(BatchProgressMsg{Snapshot: batch.ProgressSnapshot{
		TotalItems: 1500,
		Succeeded:  1200,
		Skipped:    3,
		Failed:     1,
	}})
	m = updated.(BatchModel)
	view := m.View()
	assert.Contains(t, view, "Processing records")
	assert.Contains(t, view, "1,204/1,500 units")

	updated, cmd = m.Update(BatchFinishedMsg{Outcome: failedOutcome()})
	m = updated.(BatchModel)
	assert.True(t, isQuit(t, cmd))
	assert.False(t, m.Detached())
	require.NotNil(t, m.Outcome())

	view = m.View()
	assert.Contains(t, view, "partial_failure")
	assert.Contains(t, view, "1,498")
	assert.Contains(t, view, "disk full")
}

func TestBatchModel_Detach(t *testing.T) {
	m := NewBatchModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = updated.(BatchModel)
	assert.True(t, isQuit(t, cmd))
	assert.True(t, m.Detached())
	assert.Nil(t, m.Outcome())

	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Nil(t, cmd)
	assert.True(t, updated.(BatchModel).Detached())
}

func TestBatchModel_SpinnerStopsAfterStart(t *testing.T) {
	m := NewBatchModel()
	updated, _ := m.Update(BatchProgressMsg{Snapshot: batch.ProgressSnapshot{TotalItems: 1}})
	m = updated.(BatchModel)

	_, cmd := m.Update(m.spinner.Tick())
	assert.Nil(t, cmd)
}

func TestFailureRows(t *testing.T) {
	rows := FailureRows(failedOutcome())
	require.Len(t, rows, 2)
	assert.Equal(t, FailureRow{RecordID: 2, Kind: "processing", Message: context.DeadlineExceeded.Error()}, rows[0])
	assert.Equal(t, int64(9), rows[1].RecordID)
	assert.Equal(t, "persistence", rows[1].Kind)

	assert.Nil(t, FailureRows(nil))
	assert.Nil(t, FailureRows(&engine.Outcome{State: engine.StateAllSucceeded, Records: []record.Record{{ID: 1}}}))
	assert.Nil(t, FailureRows(&engine.Outcome{State: engine.StatePartialFailure, Err: errors.New("listing identifiers: offline")}))
}

func TestRenderBatchSummary(t *testing.T) {
	ok := &engine.Outcome{RunID: "01OK", State: engine.StateAllSucceeded, Total: 3, Processed: 2, Skipped: 1}
	out := RenderBatchSummary(ok, 80)
	assert.Contains(t, out, "BATCH RUN 01OK")
	assert.Contains(t, out, "all units succeeded")

	runErr := &engine.Outcome{
		RunID: "01ERR",
		State: engine.StatePartialFailure,
		Err:   errors.New("listing identifiers: offline"),
	}
	assert.Contains(t, RenderBatchSummary(runErr, 0), "listing identifiers: offline")

	assert.Equal(t, "No batch run to display", RenderBatchSummary(nil, 80))
}

func TestDetectOutputMode(t *testing.T) {
	tests := []struct {
		name                                              string
		forceColor, noColor, interactive, tty, noColorEnv bool
		want                                              OutputMode
	}{
		{name: "pipe", want: OutputModePlain},
		{name: "tty", tty: true, want: OutputModeStyled},
		{name: "tty interactive", tty: true, interactive: true, want: OutputModeInteractive},
		{name: "interactive without tty", interactive: true, want: OutputModePlain},
		{name: "forced colour on pipe", forceColor: true, want: OutputModeStyled},
		{name: "no-color flag", tty: true, interactive: true, noColor: true, want: OutputModePlain},
		{name: "NO_COLOR env", tty: true, noColorEnv: true, want: OutputModePlain},
		{name: "force beats NO_COLOR", tty: true, noColorEnv: true, forceColor: true, want: OutputModeStyled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectOutputMode(tt.forceColor, tt.noColor, tt.interactive, tt.tty, tt.noColorEnv)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}
