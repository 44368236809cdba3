package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/rshade/recbatch/internal/engine/batch"
)

// ErrNotFound is the cause of a unit whose record vanished before it was fetched.
var ErrNotFound = errors.New("record not found")

// ErrRunInProgress is returned when a handle is waited on with an expired context.
var ErrRunInProgress = errors.New("batch run still in progress")

// ErrorKind classifies a unit failure.
type ErrorKind string

const (
	// KindNotFound means the record was absent at fetch time. Benign: the unit is skipped.
	KindNotFound ErrorKind = "not_found"
	// KindPersistence means the store rejected the write.
	KindPersistence ErrorKind = "persistence"
	// KindProcessing means an unexpected failure during fetch or transformation.
	KindProcessing ErrorKind = "processing"
)

// UnitError is the tagged failure of a single work unit.
type UnitError struct {
	RecordID int64
	Kind     ErrorKind
	Cause    error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("record %d: %s error: %v", e.RecordID, e.Kind, e.Cause)
}

func (e *UnitError) Unwrap() error {
	return e.Cause
}

// Is lets a not-found unit match batch.ErrSkipped so the dispatcher counts it as skipped.
func (e *UnitError) Is(target error) bool {
	return e.Kind == KindNotFound && target == batch.ErrSkipped
}

// IsNotFound reports whether err is a not-found unit outcome.
func IsNotFound(err error) bool {
	var ue *UnitError
	return errors.As(err, &ue) && ue.Kind == KindNotFound
}

// IsPersistence reports whether err is a persistence failure.
func IsPersistence(err error) bool {
	var ue *UnitError
	return errors.As(err, &ue) && ue.Kind == KindPersistence
}

// AggregateError is the batch-level failure. It carries every recorded unit
// cause, keyed by record ID.
type AggregateError struct {
	RunID  string
	Errors map[int64]error
}

func (e *AggregateError) Error() string {
	ids := e.RecordIDs()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, e.Errors[id].Error())
	}
	return fmt.Sprintf("batch run %s failed: %d unit(s) failed: %s", e.RunID, len(ids), strings.Join(parts, "; "))
}

// Unwrap exposes every unit error to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	ids := e.RecordIDs()
	out := make([]error, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.Errors[id])
	}
	return out
}

// RecordIDs returns the failed record IDs in ascending order.
func (e *AggregateError) RecordIDs() []int64 {
	ids := lo.Keys(e.Errors)
	slices.Sort(ids)
	return ids
}
