package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rshade/recbatch/internal/record"
)

var errDiskFull = errors.New("disk full")

// fakeStore wraps a MemoryStore with fault injection.
type fakeStore struct {
	*record.MemoryStore

	// listed overrides ListIdentifiers when non-nil.
	listed  []int64
	listErr error

	mu          sync.Mutex
	failPersist map[int64]int // id -> remaining failures, -1 = always
	maxDelay    time.Duration

	// release, when non-nil, blocks FetchByID until closed.
	release chan struct{}

	listCalls    atomic.Int32
	fetchCalls   atomic.Int32
	persistCalls atomic.Int32
	inFlight     atomic.Int32
	peakInFlight atomic.Int32
}

func newFakeStore(n int) *fakeStore {
	seed := make([]record.Record, n)
	for i := range seed {
		seed[i] = record.Record{
			Name:        "item",
			Description: "seeded",
			Status:      "NEW",
			Email:       "item@example.com",
		}
	}
	return &fakeStore{
		MemoryStore: record.NewMemoryStore(seed...),
		failPersist: make(map[int64]int),
	}
}

func (s *fakeStore) failPersistFor(id int64, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPersist[id] = times
}

func (s *fakeStore) ListIdentifiers(ctx context.Context) ([]int64, error) {
	s.listCalls.Add(1)
	if s.listErr != nil {
		return nil, s.listErr
	}
	if s.listed != nil {
		return append([]int64(nil), s.listed...), nil
	}
	return s.MemoryStore.ListIdentifiers(ctx)
}

func (s *fakeStore) FetchByID(ctx context.Context, id int64) (*record.Record, bool, error) {
	s.fetchCalls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peakInFlight.Load()
		if n <= peak || s.peakInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	if s.maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int64N(int64(s.maxDelay))))
	}
	return s.MemoryStore.FetchByID(ctx, id)
}

func (s *fakeStore) Persist(ctx context.Context, rec record.Record) (record.Record, error) {
	s.persistCalls.Add(1)

	s.mu.Lock()
	remaining, ok := s.failPersist[rec.ID]
	if ok && remaining != 0 {
		if remaining > 0 {
			s.failPersist[rec.ID] = remaining - 1
		}
		s.mu.Unlock()
		return record.Record{}, errDiskFull
	}
	s.mu.Unlock()

	return s.MemoryStore.Persist(ctx, rec)
}

// mockStore is a testify mock of record.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListIdentifiers(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *mockStore) FetchByID(ctx context.Context, id int64) (*record.Record, bool, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*record.Record)
	return rec, args.Bool(1), args.Error(2)
}

func (m *mockStore) Persist(ctx context.Context, rec record.Record) (record.Record, error) {
	args := m.Called(ctx, rec)
	saved, _ := args.Get(0).(record.Record)
	return saved, args.Error(1)
}
