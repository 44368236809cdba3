package record

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// MemoryStore is an in-process Store backed by a map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
	nextID  int64
}

// NewMemoryStore creates a MemoryStore seeded with the given records.
// Seed records with ID <= 0 are assigned the next free ID.
func NewMemoryStore(seed ...Record) *MemoryStore {
	s := &MemoryStore{
		records: make(map[int64]Record, len(seed)),
		nextID:  1,
	}
	for _, rec := range seed {
		if rec.ID <= 0 {
			rec.ID = s.nextID
		}
		s.records[rec.ID] = rec
		if rec.ID >= s.nextID {
			s.nextID = rec.ID + 1
		}
	}
	return s
}

// ListIdentifiers returns all record IDs in ascending order.
func (s *MemoryStore) ListIdentifiers(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := lo.Keys(s.records)
	slices.Sort(ids)
	return ids, nil
}

// FetchByID returns a copy of the record, or ok=false if it does not exist.
func (s *MemoryStore) FetchByID(ctx context.Context, id int64) (*Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

// Persist updates an existing record. Records are created through Create.
func (s *MemoryStore) Persist(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if rec.ID <= 0 {
		return Record{}, fmt.Errorf("%w: got %d", ErrInvalidID, rec.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return Record{}, fmt.Errorf("%w: id %d", ErrNotPersisted, rec.ID)
	}
	s.records[rec.ID] = rec
	return rec, nil
}

// Create stores a new record under a freshly assigned ID. Any ID on the input
// is ignored so an existing record is never overwritten.
func (s *MemoryStore) Create(rec Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	s.records[rec.ID] = rec
	return rec
}

// Delete removes a record. Deleting a missing record is a no-op.
func (s *MemoryStore) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// List returns copies of all records ordered by ID.
func (s *MemoryStore) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.Values(s.records)
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
