package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/tui"
)

func failedOutcome() *engine.Outcome {
	return &engine.Outcome{
		RunID:     "01TESTRUN",
		State:     engine.StatePartialFailure,
		Total:     3,
		Attempted: 3,
		Processed: 1,
		Failed:    2,
		Duration:  1500 * time.Millisecond,
		Err: &engine.AggregateError{
			RunID: "01TESTRUN",
			Errors: map[int64]error{
				3: &engine.UnitError{RecordID: 3, Kind: engine.KindProcessing, Cause: errors.New("bad data")},
				2: &engine.UnitError{RecordID: 2, Kind: engine.KindPersistence, Cause: errors.New("disk full")},
			},
		},
	}
}

func TestRenderOutcome_JSONFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderOutcome(&buf, config.FormatJSON, tui.OutputModePlain, failedOutcome()))

	var doc outcomeJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "partial_failure", doc.State)
	assert.Equal(t, int64(1500), doc.DurationMS)
	assert.Nil(t, doc.Records)
	require.Len(t, doc.Failures, 2)
	assert.Equal(t, int64(2), doc.Failures[0].RecordID)
	assert.Equal(t, string(engine.KindPersistence), doc.Failures[0].Kind)
	assert.Equal(t, int64(3), doc.Failures[1].RecordID)
	assert.Contains(t, doc.Error, "2 unit(s) failed")
}

func TestRenderOutcome_PlainFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderOutcome(&buf, config.FormatTable, tui.OutputModePlain, failedOutcome()))

	out := buf.String()
	assert.Contains(t, out, "partial_failure")
	assert.Contains(t, out, "RECORD")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "bad data")
	assert.Contains(t, out, "1.5s")
}

func TestRenderOutcome_PlainRunError(t *testing.T) {
	out := &engine.Outcome{
		RunID: "01TESTRUN",
		State: engine.StatePartialFailure,
		Err:   errors.New("listing identifiers: store offline"),
	}

	var buf bytes.Buffer
	require.NoError(t, renderOutcome(&buf, config.FormatTable, tui.OutputModePlain, out))
	assert.Contains(t, buf.String(), "Error: listing identifiers: store offline")
}

func TestRenderOutcome_Styled(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderOutcome(&buf, config.FormatTable, tui.OutputModeStyled, failedOutcome()))
	assert.Contains(t, buf.String(), "disk full")
}
