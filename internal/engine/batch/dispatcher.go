package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Common dispatch errors.
var (
	ErrInvalidConcurrency = errors.New("max concurrency must be >= 0")
	ErrNilUnit            = errors.New("unit function cannot be nil")

	// ErrSkipped marks a unit that ended without doing work and without failing.
	// Units signal it by returning an error for which errors.Is(err, ErrSkipped)
	// holds; such units are counted as skipped, not failed.
	ErrSkipped = errors.New("unit skipped")
)

// UnitFunc processes a single item. index is the item's position in the
// dispatched slice.
type UnitFunc[T any] func(ctx context.Context, item T, index int) error

// ProgressCallback is invoked after each unit reaches a terminal state.
type ProgressCallback func(snapshot ProgressSnapshot)

// DispatchError aggregates every failed unit of a dispatch.
type DispatchError struct {
	Total int
	Errs  []error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: %d of %d units failed: %v", len(e.Errs), e.Total, errors.Join(e.Errs...))
}

// Unwrap exposes every unit error to errors.Is and errors.As.
func (e *DispatchError) Unwrap() []error {
	return e.Errs
}

// Dispatcher runs one goroutine per item and waits for all of them.
type Dispatcher[T any] struct {
	// maxConcurrency bounds in-flight units; 0 means unbounded.
	maxConcurrency int

	onProgress ProgressCallback
}

// NewDispatcher creates a dispatcher. maxConcurrency of 0 leaves the number of
// in-flight units unbounded.
func NewDispatcher[T any](maxConcurrency int) (*Dispatcher[T], error) {
	if maxConcurrency < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrency)
	}
	return &Dispatcher[T]{maxConcurrency: maxConcurrency}, nil
}

// WithProgressCallback sets a progress callback for the dispatcher.
// The callback may be invoked from many goroutines concurrently.
func (d *Dispatcher[T]) WithProgressCallback(callback ProgressCallback) *Dispatcher[T] {
	d.onProgress = callback
	return d
}

// MaxConcurrency returns the configured bound, 0 when unbounded.
func (d *Dispatcher[T]) MaxConcurrency() int {
	return d.maxConcurrency
}

// Dispatch runs unit once per item and returns only after every unit has
// returned. Unit errors are collected, never short-circuited; a unit that
// panics is reported as failed. A canceled ctx is handed to the remaining
// units rather than abandoning them, so the join still covers every item.
//
// The returned Progress holds the final per-outcome counts.
func (d *Dispatcher[T]) Dispatch(ctx context.Context, items []T, unit UnitFunc[T]) (*Progress, error) {
	if unit == nil {
		return nil, ErrNilUnit
	}

	progress := NewProgress(len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	if d.maxConcurrency > 0 {
		g.SetLimit(d.maxConcurrency)
	}

	for i, item := range items {
		g.Go(func() error {
			err := runUnit(ctx, unit, item, i)
			switch {
			case err == nil:
				progress.Add(OutcomeSucceeded)
			case errors.Is(err, ErrSkipped):
				progress.Add(OutcomeSkipped)
			default:
				errs[i] = err
				progress.Add(OutcomeFailed)
			}

			if d.onProgress != nil {
				d.onProgress(progress.Snapshot())
			}
			// Always nil: one failing unit must not affect the others.
			return nil
		})
	}

	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return progress, &DispatchError{Total: len(items), Errs: failed}
	}
	return progress, nil
}

// runUnit invokes unit, converting a panic into an error.
func runUnit[T any](ctx context.Context, unit UnitFunc[T], item T, index int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %d panicked: %v", index, r)
		}
	}()
	return unit(ctx, item, index)
}
