package engine

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/recbatch/internal/record"
)

// RunState is the lifecycle state of a BatchRun.
type RunState int

const (
	// StateIdle is a run that has not started dispatching.
	StateIdle RunState = iota
	// StateRunning is a run with units in flight.
	StateRunning
	// StateAllSucceeded is terminal: every unit succeeded or was skipped.
	StateAllSucceeded
	// StatePartialFailure is terminal: at least one unit failed, or the run
	// could not enumerate its identifiers.
	StatePartialFailure
)

// String returns the state name.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateAllSucceeded:
		return "all_succeeded"
	case StatePartialFailure:
		return "partial_failure"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s RunState) Terminal() bool {
	return s == StateAllSucceeded || s == StatePartialFailure
}

// BatchRun is the state of one batch invocation. It is created per run,
// mutated by that run's units only, and dropped once its Outcome is built.
type BatchRun struct {
	id        string
	startedAt time.Time

	mu    sync.Mutex
	state RunState
	ids   []int64

	results *ResultSet
	errors  *ErrorSet

	attempted atomic.Int64
	skipped   atomic.Int64
}

func newBatchRun() *BatchRun {
	return &BatchRun{
		id:        ulid.MustNew(ulid.Now(), rand.Reader).String(),
		startedAt: time.Now(),
		state:     StateIdle,
		results:   NewResultSet(),
		errors:    NewErrorSet(),
	}
}

// ID returns the run's ULID.
func (r *BatchRun) ID() string {
	return r.id
}

// State returns the current lifecycle state.
func (r *BatchRun) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// start fixes the identifier set and moves the run to Running.
func (r *BatchRun) start(ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("cannot start run %s in state %s", r.id, r.state)
	}
	r.ids = ids
	r.state = StateRunning
	return nil
}

// finish moves the run to its terminal state.
func (r *BatchRun) finish(state RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Terminal() {
		return fmt.Errorf("run %s already finished as %s", r.id, r.state)
	}
	if !state.Terminal() {
		return fmt.Errorf("run %s cannot finish in non-terminal state %s", r.id, state)
	}
	r.state = state
	return nil
}

// Outcome is the single resolved result of a BatchRun.
type Outcome struct {
	RunID string
	State RunState

	// Records holds the processed records on success. It is a snapshot copy
	// and is nil on failure.
	Records []record.Record
	// Err is an *AggregateError when units failed, or the run-level error
	// when the run could not start.
	Err error

	Total     int
	Attempted int
	Processed int
	Skipped   int
	Failed    int

	StartedAt time.Time
	Duration  time.Duration
}

// OK reports whether the run succeeded.
func (o *Outcome) OK() bool {
	return o.State == StateAllSucceeded
}

// Result returns the processed records, or the failure.
func (o *Outcome) Result() ([]record.Record, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Records, nil
}

// outcome builds the run's Outcome. Callers must only invoke it after the
// join barrier.
func (r *BatchRun) outcome(runErr error) *Outcome {
	r.mu.Lock()
	total := len(r.ids)
	r.mu.Unlock()

	out := &Outcome{
		RunID:     r.id,
		Total:     total,
		Attempted: int(r.attempted.Load()),
		Processed: r.results.Len(),
		Skipped:   int(r.skipped.Load()),
		StartedAt: r.startedAt,
		Duration:  time.Since(r.startedAt),
	}

	errs := r.errors.Snapshot()
	out.Failed = len(errs)

	switch {
	case runErr != nil:
		out.State = StatePartialFailure
		out.Err = runErr
	case len(errs) > 0:
		out.State = StatePartialFailure
		out.Err = &AggregateError{RunID: r.id, Errors: errs}
	default:
		out.State = StateAllSucceeded
		out.Records = r.results.Snapshot()
	}
	return out
}
