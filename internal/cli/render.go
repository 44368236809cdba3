package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/record"
	"github.com/rshade/recbatch/internal/tui"
)

// tabPadding is the minimum column padding for tabwriter output.
const tabPadding = 2

// outcomeJSON is the machine-readable form of an engine.Outcome.
type outcomeJSON struct {
	RunID      string           `json:"run_id"`
	State      string           `json:"state"`
	Total      int              `json:"total"`
	Attempted  int              `json:"attempted"`
	Processed  int              `json:"processed"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	DurationMS int64            `json:"duration_ms"`
	Records    []record.Record  `json:"records,omitempty"`
	Failures   []tui.FailureRow `json:"failures,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func newOutcomeJSON(out *engine.Outcome) outcomeJSON {
	doc := outcomeJSON{
		RunID:      out.RunID,
		State:      out.State.String(),
		Total:      out.Total,
		Attempted:  out.Attempted,
		Processed:  out.Processed,
		Skipped:    out.Skipped,
		Failed:     out.Failed,
		DurationMS: out.Duration.Milliseconds(),
		Records:    out.Records,
		Failures:   tui.FailureRows(out),
	}
	if out.Err != nil {
		doc.Error = out.Err.Error()
	}
	return doc
}

// renderOutcome writes out in the requested format.
func renderOutcome(w io.Writer, format string, mode tui.OutputMode, out *engine.Outcome) error {
	if format == config.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newOutcomeJSON(out))
	}

	if mode == tui.OutputModePlain {
		return renderPlainOutcome(w, out)
	}

	_, err := fmt.Fprintln(w, tui.RenderBatchSummary(out, 0))
	if err != nil {
		return err
	}
	return renderFailureTable(w, tui.FailureRows(out))
}

// renderPlainOutcome writes an uncoloured summary followed by any failures.
func renderPlainOutcome(w io.Writer, out *engine.Outcome) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)

	_, _ = fmt.Fprintf(tw, "Run:\t%s\n", out.RunID)
	_, _ = fmt.Fprintf(tw, "State:\t%s\n", out.State)
	_, _ = p.Fprintf(tw, "Total:\t%d\n", out.Total)
	_, _ = p.Fprintf(tw, "Processed:\t%d\n", out.Processed)
	_, _ = p.Fprintf(tw, "Skipped:\t%d\n", out.Skipped)
	_, _ = p.Fprintf(tw, "Failed:\t%d\n", out.Failed)
	_, _ = fmt.Fprintf(tw, "Duration:\t%s\n", out.Duration.Round(time.Millisecond))
	if err := tw.Flush(); err != nil {
		return err
	}

	rows := tui.FailureRows(out)
	if len(rows) == 0 && out.Err != nil {
		_, err := fmt.Fprintf(w, "Error: %v\n", out.Err)
		return err
	}
	return renderFailureTable(w, rows)
}

// renderFailureTable writes one line per failed unit.
func renderFailureTable(w io.Writer, rows []tui.FailureRow) error {
	if len(rows) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RECORD\tKIND\tCAUSE")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", r.RecordID, r.Kind, r.Message)
	}
	return tw.Flush()
}

// renderRecords writes records as a table.
func renderRecords(w io.Writer, recs []record.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tEMAIL")
	for _, r := range recs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Name, r.Status, r.Email)
	}
	return tw.Flush()
}
