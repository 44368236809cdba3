// Package engine implements the concurrent record batch engine: a stateless
// per-record work unit and a coordinator that fans units out, joins on all of
// them and resolves one aggregate outcome per run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/rshade/recbatch/internal/engine/batch"
	"github.com/rshade/recbatch/internal/logging"
	"github.com/rshade/recbatch/internal/record"
)

// ErrInvalidOption is returned by NewCoordinator for out-of-range options.
var ErrInvalidOption = errors.New("invalid coordinator option")

// DefaultRetryBackoff is the initial persist retry backoff.
const DefaultRetryBackoff = 50 * time.Millisecond

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxConcurrency bounds simultaneous in-flight units. 0 means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.maxConcurrency = n
	}
}

// WithUnitTimeout bounds each unit. 0 disables the per-unit deadline.
func WithUnitTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.unitTimeout = d
	}
}

// WithBatchTimeout bounds the whole run. Units still reach a terminal state
// after expiry; they fail with the deadline error instead of doing work.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.batchTimeout = d
	}
}

// WithSimulatedDelay adds an artificial I/O delay to every unit.
func WithSimulatedDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.simulatedDelay = d
	}
}

// WithPersistRetries retries units that fail to persist up to n more times,
// doubling backoff after each attempt.
func WithPersistRetries(n int, backoff time.Duration) Option {
	return func(c *Coordinator) {
		c.persistRetries = n
		c.retryBackoff = backoff
	}
}

// WithProgress sets a callback invoked after every unit reaches a terminal state.
func WithProgress(fn batch.ProgressCallback) Option {
	return func(c *Coordinator) {
		c.onProgress = fn
	}
}

// Coordinator runs batches over a record store.
//
// Batch starts are serialized: a run waits for any previous run on the same
// coordinator to resolve before it enumerates identifiers.
type Coordinator struct {
	store record.Store
	unit  *UnitProcessor

	maxConcurrency int
	unitTimeout    time.Duration
	batchTimeout   time.Duration
	simulatedDelay time.Duration
	persistRetries int
	retryBackoff   time.Duration
	onProgress     batch.ProgressCallback

	// gate has capacity 1; holding a token means a run is active.
	gate chan struct{}
}

// NewCoordinator creates a coordinator over store.
func NewCoordinator(store record.Store, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store cannot be nil", ErrInvalidOption)
	}

	c := &Coordinator{
		store:        store,
		retryBackoff: DefaultRetryBackoff,
		gate:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.maxConcurrency < 0:
		return nil, fmt.Errorf("%w: max concurrency must be >= 0, got %d", ErrInvalidOption, c.maxConcurrency)
	case c.unitTimeout < 0, c.batchTimeout < 0, c.simulatedDelay < 0:
		return nil, fmt.Errorf("%w: durations must be >= 0", ErrInvalidOption)
	case c.persistRetries < 0:
		return nil, fmt.Errorf("%w: persist retries must be >= 0, got %d", ErrInvalidOption, c.persistRetries)
	}

	c.unit = NewUnitProcessor(store).
		WithDelay(c.simulatedDelay).
		WithTimeout(c.unitTimeout)
	return c, nil
}

// RunBatch starts a batch run and returns immediately. The returned handle
// resolves once every dispatched unit has reached a terminal state.
func (c *Coordinator) RunBatch(ctx context.Context) *Handle {
	run := newBatchRun()
	h := newHandle(run.ID())

	go func() {
		h.resolve(c.execute(ctx, run))
	}()

	return h
}

// Run starts a batch and waits for its outcome.
func (c *Coordinator) Run(ctx context.Context) (*Outcome, error) {
	return c.RunBatch(ctx).Wait(ctx)
}

// execute drives a run from Idle to a terminal state.
func (c *Coordinator) execute(ctx context.Context, run *BatchRun) *Outcome {
	log := logging.FromContext(ctx).With().
		Str("component", "engine").
		Str("run_id", run.ID()).
		Logger()
	ctx = log.WithContext(ctx)

	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		return c.fail(run, &log, fmt.Errorf("waiting for previous run: %w", ctx.Err()))
	}
	defer func() { <-c.gate }()

	if c.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.batchTimeout)
		defer cancel()
	}

	ids, err := c.store.ListIdentifiers(ctx)
	if err != nil {
		return c.fail(run, &log, fmt.Errorf("listing identifiers: %w", err))
	}
	ids = lo.Uniq(ids)

	if err = run.start(ids); err != nil {
		return c.fail(run, &log, err)
	}

	log.Info().
		Int("total", len(ids)).
		Int("max_concurrency", c.maxConcurrency).
		Msg("batch run started")

	dispatcher, err := batch.NewDispatcher[int64](c.maxConcurrency)
	if err != nil {
		return c.fail(run, &log, err)
	}
	dispatcher.WithProgressCallback(c.onProgress)

	_, dispatchErr := dispatcher.Dispatch(ctx, ids, func(ctx context.Context, id int64, _ int) error {
		return c.runUnit(ctx, run, id)
	})

	out := run.outcome(nil)
	if finishErr := run.finish(out.State); finishErr != nil {
		log.Error().Err(finishErr).Msg("invalid run state transition")
	}

	// Every dispatcher failure must also be in the run's error set.
	var de *batch.DispatchError
	if errors.As(dispatchErr, &de) && len(de.Errs) != out.Failed {
		log.Error().
			Int("dispatch_failures", len(de.Errs)).
			Int("recorded_failures", out.Failed).
			Msg("unit failure count mismatch")
	}

	event := log.Info()
	var agg *AggregateError
	if errors.As(out.Err, &agg) {
		event = log.Error().Err(out.Err).Ints64("failed_ids", agg.RecordIDs())
	}
	event.
		Str("state", out.State.String()).
		Int("total", out.Total).
		Int("processed", out.Processed).
		Int("skipped", out.Skipped).
		Int("failed", out.Failed).
		Dur("duration", out.Duration).
		Msg("batch run finished")

	return out
}

// runUnit processes one identifier and records its outcome on the run.
func (c *Coordinator) runUnit(ctx context.Context, run *BatchRun, id int64) error {
	run.attempted.Add(1)

	rec, err := c.processWithRetry(ctx, id)
	switch {
	case err == nil:
		if !run.results.Add(rec) {
			logging.FromContext(ctx).Warn().Int64("record_id", id).Msg("duplicate result dropped")
		}
		return nil
	case IsNotFound(err):
		run.skipped.Add(1)
		logging.FromContext(ctx).Debug().Int64("record_id", id).Msg("record vanished before processing, skipped")
		return err
	default:
		run.errors.Record(id, err)
		logging.FromContext(ctx).Warn().Err(err).Int64("record_id", id).Msg("unit failed")
		return err
	}
}

// processWithRetry runs the unit, retrying persistence failures only.
func (c *Coordinator) processWithRetry(ctx context.Context, id int64) (record.Record, error) {
	backoff := c.retryBackoff
	for attempt := 0; ; attempt++ {
		rec, err := c.unit.Process(ctx, id)
		if err == nil || !IsPersistence(err) || attempt >= c.persistRetries {
			return rec, err
		}

		logging.FromContext(ctx).Debug().
			Err(err).
			Int64("record_id", id).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("persist failed, retrying")

		if sleepErr := sleepContext(ctx, backoff); sleepErr != nil {
			return rec, err
		}
		backoff *= 2
	}
}

// fail resolves a run that could not dispatch its units.
func (c *Coordinator) fail(run *BatchRun, log *zerolog.Logger, err error) *Outcome {
	out := run.outcome(err)
	_ = run.finish(StatePartialFailure)
	log.Error().Err(err).Msg("batch run failed before dispatch")
	return out
}

// Handle is the caller's view of an in-flight run.
type Handle struct {
	runID   string
	done    chan struct{}
	outcome *Outcome
}

func newHandle(runID string) *Handle {
	return &Handle{runID: runID, done: make(chan struct{})}
}

// resolve publishes the outcome. It must be called exactly once.
func (h *Handle) resolve(out *Outcome) {
	h.outcome = out
	close(h.done)
}

// RunID returns the ID of the run behind this handle.
func (h *Handle) RunID() string {
	return h.runID
}

// Done is closed once the outcome is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the outcome without blocking. ok is false while the run is in flight.
func (h *Handle) Outcome() (*Outcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return nil, false
	}
}

// Wait blocks until the run resolves or ctx is done. On resolution it returns
// the outcome together with the outcome's error, so a failed run yields both a
// non-nil Outcome and a non-nil error. If ctx ends first the outcome is nil and
// the run keeps going; the handle can be waited on again.
func (h *Handle) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, h.outcome.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrRunInProgress, ctx.Err())
	}
}
