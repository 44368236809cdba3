package engine

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"github.com/rshade/recbatch/internal/record"
)

// ResultSet collects processed records from concurrent units.
// At most one record is kept per ID; a second add for the same ID is rejected.
type ResultSet struct {
	mu      sync.Mutex
	records map[int64]record.Record
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{records: make(map[int64]record.Record)}
}

// Add stores rec. It returns false if a record with the same ID is already present.
func (s *ResultSet) Add(rec record.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.records[rec.ID]; dup {
		return false
	}
	s.records[rec.ID] = rec
	return true
}

// Len returns the number of collected records.
func (s *ResultSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Snapshot returns a copy of the collected records ordered by ID. Later adds do
// not affect a returned snapshot.
func (s *ResultSet) Snapshot() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Collect(maps.Values(s.records))
	slices.SortFunc(out, func(a, b record.Record) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// ErrorSet collects (record ID, cause) pairs from concurrent units.
type ErrorSet struct {
	mu   sync.Mutex
	errs map[int64]error
}

// NewErrorSet creates an empty error set.
func NewErrorSet() *ErrorSet {
	return &ErrorSet{errs: make(map[int64]error)}
}

// Record stores the cause for id. The first cause recorded for an ID wins.
func (s *ErrorSet) Record(id int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.errs[id]; dup {
		return
	}
	s.errs[id] = err
}

// Len returns the number of recorded errors.
func (s *ErrorSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

// Snapshot returns a copy of the recorded errors.
func (s *ErrorSet) Snapshot() map[int64]error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.errs)
}
