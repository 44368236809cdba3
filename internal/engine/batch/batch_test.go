package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Dispatch(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	t.Run("Unbounded", func(t *testing.T) {
		d, err := NewDispatcher[int](0)
		require.NoError(t, err)
		var processed int32

		progress, err := d.Dispatch(context.Background(), items, func(_ context.Context, _ int, _ int) error {
			atomic.AddInt32(&processed, 1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(25), processed)
		assert.True(t, progress.IsComplete())
		assert.Equal(t, 25, progress.Snapshot().Succeeded)
	})

	t.Run("Bounded", func(t *testing.T) {
		d, err := NewDispatcher[int](3)
		require.NoError(t, err)
		var inFlight, peak int32

		_, err = d.Dispatch(context.Background(), items, func(_ context.Context, _ int, _ int) error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, peak, int32(3))
	})

	t.Run("NoFailFast", func(t *testing.T) {
		d, _ := NewDispatcher[int](2)
		var ran int32

		progress, err := d.Dispatch(context.Background(), items, func(_ context.Context, item int, _ int) error {
			atomic.AddInt32(&ran, 1)
			if item%5 == 0 {
				return fmt.Errorf("item %d: %w", item, errors.New("boom"))
			}
			return nil
		})
		require.Error(t, err)
		assert.Equal(t, int32(25), ran)

		var de *DispatchError
		require.ErrorAs(t, err, &de)
		assert.Len(t, de.Errs, 5)
		assert.Equal(t, 25, de.Total)
		assert.Equal(t, 5, progress.Snapshot().Failed)
	})

	t.Run("SkippedIsNotFailure", func(t *testing.T) {
		d, _ := NewDispatcher[int](0)

		progress, err := d.Dispatch(context.Background(), items, func(_ context.Context, item int, _ int) error {
			if item < 10 {
				return fmt.Errorf("item %d: %w", item, ErrSkipped)
			}
			return nil
		})
		require.NoError(t, err)
		snap := progress.Snapshot()
		assert.Equal(t, 10, snap.Skipped)
		assert.Equal(t, 15, snap.Succeeded)
	})

	t.Run("PanicBecomesError", func(t *testing.T) {
		d, _ := NewDispatcher[int](0)

		_, err := d.Dispatch(context.Background(), []int{1, 2}, func(_ context.Context, item int, _ int) error {
			if item == 2 {
				panic("unexpected")
			}
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})

	t.Run("CanceledContextStillJoinsAll", func(t *testing.T) {
		d, _ := NewDispatcher[int](1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var ran int32

		progress, err := d.Dispatch(ctx, items, func(ctx context.Context, _ int, _ int) error {
			atomic.AddInt32(&ran, 1)
			return ctx.Err()
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(25), ran)
		assert.True(t, progress.IsComplete())
	})

	t.Run("NilUnit", func(t *testing.T) {
		d, _ := NewDispatcher[int](0)
		_, err := d.Dispatch(context.Background(), items, nil)
		assert.Equal(t, ErrNilUnit, err)
	})

	t.Run("InvalidConcurrency", func(t *testing.T) {
		_, err := NewDispatcher[int](-1)
		assert.ErrorIs(t, err, ErrInvalidConcurrency)
	})

	t.Run("ProgressCallback", func(t *testing.T) {
		d, _ := NewDispatcher[int](4)
		var calls int32
		var last atomic.Int64
		d.WithProgressCallback(func(s ProgressSnapshot) {
			atomic.AddInt32(&calls, 1)
			last.Store(int64(s.TotalItems))
		})

		_, err := d.Dispatch(context.Background(), items, func(context.Context, int, int) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, int32(25), calls)
		assert.Equal(t, int64(25), last.Load())
	})
}

func TestProgress(t *testing.T) {
	p := NewProgress(4)

	assert.Equal(t, 0.0, p.PercentComplete())
	assert.False(t, p.IsComplete())
	assert.Equal(t, time.Duration(0), p.EstimatedTimeRemaining())

	p.Add(OutcomeSucceeded)
	p.Add(OutcomeSkipped)
	assert.Equal(t, 50.0, p.PercentComplete())
	assert.Equal(t, 2, p.Done())

	p.Add(OutcomeFailed)
	p.Add(OutcomeSucceeded)
	assert.True(t, p.IsComplete())
	assert.Greater(t, p.ElapsedTime(), time.Duration(0))

	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 4, snap.Done())
	assert.InDelta(t, 1.0, snap.Ratio(), 0.0001)

	t.Run("Reset", func(t *testing.T) {
		p.Reset()
		assert.Equal(t, 0, p.Done())
		assert.Equal(t, "failed", OutcomeFailed.String())
	})
}

func TestChunkBounds(t *testing.T) {
	bounds := ChunkBounds(25, 10)
	require.Len(t, bounds, 3)
	assert.Equal(t, [2]int{0, 10}, bounds[0])
	assert.Equal(t, [2]int{10, 20}, bounds[1])
	assert.Equal(t, [2]int{20, 25}, bounds[2])
	assert.Nil(t, ChunkBounds(0, 10))
}
