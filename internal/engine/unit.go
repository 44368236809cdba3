package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rshade/recbatch/internal/logging"
	"github.com/rshade/recbatch/internal/record"
)

// UnitProcessor processes a single record: fetch, mark processed, persist.
// It holds no per-run state and is safe for concurrent use.
type UnitProcessor struct {
	store record.Store

	// delay simulates slow I/O before the fetch. Zero disables it.
	delay time.Duration
	// timeout bounds a single unit. Zero means no per-unit deadline.
	timeout time.Duration
}

// NewUnitProcessor creates a processor over store.
func NewUnitProcessor(store record.Store) *UnitProcessor {
	return &UnitProcessor{store: store}
}

// WithDelay sets a simulated per-unit I/O delay.
func (p *UnitProcessor) WithDelay(d time.Duration) *UnitProcessor {
	p.delay = d
	return p
}

// WithTimeout sets a per-unit deadline.
func (p *UnitProcessor) WithTimeout(d time.Duration) *UnitProcessor {
	p.timeout = d
	return p
}

// Process runs one work unit for id. Every returned error is a *UnitError
// tagged with id: KindNotFound when the record is gone, KindPersistence when
// the store rejects the write, KindProcessing for anything else (including a
// panic in the transformation or an expired deadline).
func (p *UnitProcessor) Process(ctx context.Context, id int64) (rec record.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = record.Record{}
			err = &UnitError{RecordID: id, Kind: KindProcessing, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err = sleepContext(ctx, p.delay); err != nil {
		return record.Record{}, &UnitError{RecordID: id, Kind: KindProcessing, Cause: err}
	}

	found, ok, err := p.store.FetchByID(ctx, id)
	if err != nil {
		return record.Record{}, &UnitError{RecordID: id, Kind: KindProcessing, Cause: fmt.Errorf("fetching record: %w", err)}
	}
	if !ok || found == nil {
		return record.Record{}, &UnitError{RecordID: id, Kind: KindNotFound, Cause: ErrNotFound}
	}

	updated := markProcessed(*found)

	saved, err := p.store.Persist(ctx, updated)
	if err != nil {
		return record.Record{}, &UnitError{RecordID: id, Kind: KindPersistence, Cause: err}
	}

	logging.FromContext(ctx).Debug().
		Int64("record_id", id).
		Str("status", saved.Status).
		Msg("record processed")
	return saved, nil
}

// markProcessed returns rec with the terminal status. Re-marking an already
// processed record is allowed.
func markProcessed(rec record.Record) record.Record {
	rec.Status = record.StatusProcessed
	return rec
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
