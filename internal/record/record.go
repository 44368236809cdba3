// Package record defines the record model and the store contract the batch
// engine consumes. The stores in this package are deliberately small: they
// exist so the engine can run against something real, not to provide a full
// persistence layer.
package record

import (
	"context"
	"errors"
)

// StatusProcessed is the terminal status written by the batch engine.
const StatusProcessed = "PROCESSED"

// Common store errors.
var (
	ErrNilRecord    = errors.New("record cannot be nil")
	ErrInvalidID    = errors.New("record ID must be positive")
	ErrNotPersisted = errors.New("record does not exist in store")
)

// Record is a single managed record.
type Record struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Email       string `json:"email"`
}

// IsProcessed reports whether the record carries the processed marker.
func (r Record) IsProcessed() bool {
	return r.Status == StatusProcessed
}

// Store is the persistence collaborator used by the batch engine.
//
// Implementations must be safe for concurrent use. FetchByID reports a missing
// record with ok=false and a nil error; the error return is reserved for I/O
// failures.
type Store interface {
	// ListIdentifiers returns a snapshot of every known record ID.
	ListIdentifiers(ctx context.Context) ([]int64, error)
	// FetchByID returns a copy of the record with the given ID.
	FetchByID(ctx context.Context, id int64) (*Record, bool, error)
	// Persist writes the record and returns the stored copy.
	Persist(ctx context.Context, rec Record) (Record, error)
}
