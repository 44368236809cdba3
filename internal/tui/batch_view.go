package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/engine/batch"
)

// failureTableChrome is the header and border height of the failure table.
const failureTableChrome = 3

// FailureRow is one failed unit in display form.
type FailureRow struct {
	RecordID int64  `json:"record_id"`
	Kind     string `json:"kind"`
	Message  string `json:"error"`
}

// FailureRows flattens an outcome's aggregate error, ordered by record ID.
// It returns nil for successful outcomes and for run-level failures.
func FailureRows(out *engine.Outcome) []FailureRow {
	var agg *engine.AggregateError
	if out == nil || !errors.As(out.Err, &agg) {
		return nil
	}

	ids := agg.RecordIDs()
	rows := make([]FailureRow, 0, len(ids))
	for _, id := range ids {
		err := agg.Errors[id]
		row := FailureRow{RecordID: id, Kind: "unknown", Message: err.Error()}
		var ue *engine.UnitError
		if errors.As(err, &ue) {
			row.Kind = string(ue.Kind)
			row.Message = ue.Cause.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

// NewFailureTable builds a table of failed units.
func NewFailureTable(rows []FailureRow, height int) table.Model {
	columns := []table.Column{
		{Title: "Record", Width: 10}, //nolint:mnd // Column width.
		{Title: "Kind", Width: 12},   //nolint:mnd // Column width.
		{Title: "Cause", Width: 50},  //nolint:mnd // Column width.
	}

	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row{fmt.Sprintf("%d", r.RecordID), r.Kind, r.Message}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(min(height, len(rows)+failureTableChrome)),
	)

	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = TableSelectedStyle
	t.SetStyles(s)

	return t
}

// RenderProgressLine renders the live counters of a snapshot.
func RenderProgressLine(snap batch.ProgressSnapshot) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%d/%d units  %s %d  %s %d  %s %d  %.1f/s",
		snap.Done(), snap.TotalItems,
		OKStyle.Render(IconOK), snap.Succeeded,
		WarnStyle.Render(IconSkipped), snap.Skipped,
		ErrorStyle.Render(IconFailed), snap.Failed,
		snap.ItemsPerSecond,
	)
}

// RenderBatchSummary renders a boxed summary of a finished run.
func RenderBatchSummary(out *engine.Outcome, width int) string {
	if out == nil {
		return "No batch run to display"
	}
	if width <= borderPadding {
		width = defaultWidth
	}

	p := message.NewPrinter(language.English)
	var content strings.Builder

	content.WriteString(HeaderStyle.Render("BATCH RUN " + out.RunID))
	content.WriteString("\n\n")

	status := OKStyle.Render(IconOK + " all units succeeded")
	if !out.OK() {
		status = ErrorStyle.Render(IconFailed + " " + out.State.String())
	}
	fmt.Fprintf(&content, "%s %s\n", LabelStyle.Render("Status:"), status)
	content.WriteString(p.Sprintf("%s %d\n", LabelStyle.Render("Total:"), out.Total))
	content.WriteString(p.Sprintf("%s %d\n", LabelStyle.Render("Processed:"), out.Processed))
	content.WriteString(p.Sprintf("%s %d\n", LabelStyle.Render("Skipped:"), out.Skipped))
	content.WriteString(p.Sprintf("%s %d\n", LabelStyle.Render("Failed:"), out.Failed))
	fmt.Fprintf(&content, "%s %s", LabelStyle.Render("Duration:"),
		SubtleStyle.Render(out.Duration.Round(time.Millisecond).String()))

	var agg *engine.AggregateError
	if out.Err != nil && !errors.As(out.Err, &agg) {
		fmt.Fprintf(&content, "\n%s %s", LabelStyle.Render("Error:"), ErrorStyle.Render(out.Err.Error()))
	}

	return BoxStyle.Width(width - borderPadding).Render(content.String())
}
