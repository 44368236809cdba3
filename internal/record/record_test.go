package record

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{Name: "alpha", Description: "first", Status: "NEW", Email: "alpha@example.com"},
		{Name: "beta", Description: "second", Status: "NEW", Email: "beta@example.com"},
		{Name: "gamma", Description: "third", Status: "NEW", Email: "gamma@example.com"},
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("seed assigns ids", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore(sampleRecords()...)

		ids, err := s.ListIdentifiers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids)
	})

	t.Run("fetch missing returns not ok", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore()

		rec, ok, err := s.FetchByID(ctx, 42)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, rec)
	})

	t.Run("fetch returns a copy", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore(sampleRecords()...)

		rec, ok, err := s.FetchByID(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		rec.Status = "MUTATED"

		again, _, err := s.FetchByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "NEW", again.Status)
	})

	t.Run("persist updates existing", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore(sampleRecords()...)

		rec, _, err := s.FetchByID(ctx, 2)
		require.NoError(t, err)
		rec.Status = StatusProcessed

		saved, err := s.Persist(ctx, *rec)
		require.NoError(t, err)
		assert.True(t, saved.IsProcessed())

		got, _, err := s.FetchByID(ctx, 2)
		require.NoError(t, err)
		assert.True(t, got.IsProcessed())
	})

	t.Run("persist rejects unknown and invalid ids", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore()

		_, err := s.Persist(ctx, Record{ID: 7})
		require.ErrorIs(t, err, ErrNotPersisted)

		_, err = s.Persist(ctx, Record{ID: 0})
		require.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("create never overwrites", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore(sampleRecords()...)

		created := s.Create(Record{ID: 1, Name: "delta"})
		assert.Equal(t, int64(4), created.ID)
		assert.Equal(t, 4, s.Count())

		first, _, err := s.FetchByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "alpha", first.Name)
	})

	t.Run("delete removes", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore(sampleRecords()...)
		s.Delete(2)
		s.Delete(99)

		ids, err := s.ListIdentifiers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3}, ids)
		assert.Len(t, s.List(), 2)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		s := NewMemoryStore(sampleRecords()...)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.ListIdentifiers(cctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newStore := func(t *testing.T) *FileStore {
		t.Helper()
		s, err := NewFileStore(filepath.Join(t.TempDir(), "records.json"))
		require.NoError(t, err)
		return s
	}

	t.Run("empty path defaults to home dir", func(t *testing.T) {
		t.Parallel()
		s, err := NewFileStore("")
		require.NoError(t, err)
		assert.Contains(t, s.FilePath(), "records.json")
	})

	t.Run("missing file is empty", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		ids, err := s.ListIdentifiers(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("create persist and reload", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		created, err := s.Create(sampleRecords()...)
		require.NoError(t, err)
		require.Len(t, created, 3)
		assert.Equal(t, int64(1), created[0].ID)
		assert.Equal(t, int64(3), created[2].ID)

		rec := created[1]
		rec.Status = StatusProcessed
		_, err = s.Persist(ctx, rec)
		require.NoError(t, err)

		reopened, err := NewFileStore(s.FilePath())
		require.NoError(t, err)
		got, ok, err := reopened.FetchByID(ctx, 2)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, got.IsProcessed())

		all, err := reopened.List()
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("ids are not reused after delete", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		_, err := s.Create(sampleRecords()...)
		require.NoError(t, err)
		require.NoError(t, s.Delete(3))

		created, err := s.Create(Record{Name: "delta"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), created[0].ID)
	})

	t.Run("persist unknown id fails", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		_, err := s.Persist(ctx, Record{ID: 5})
		require.ErrorIs(t, err, ErrNotPersisted)
	})

	t.Run("concurrent persists are not lost", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		seed := make([]Record, 40)
		for i := range seed {
			seed[i] = Record{Name: "r", Status: "NEW"}
		}
		created, err := s.Create(seed...)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, len(created))
		for i, rec := range created {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec.Status = StatusProcessed
				_, errs[i] = s.Persist(ctx, rec)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		all, err := s.List()
		require.NoError(t, err)
		for _, rec := range all {
			assert.True(t, rec.IsProcessed(), "record %d lost its update", rec.ID)
		}
	})

	t.Run("corrupted file", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		require.NoError(t, os.WriteFile(s.FilePath(), []byte("{invalid"), 0o600))

		_, err := s.ListIdentifiers(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStoreCorrupted))
	})

	t.Run("unsupported schema version", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		data := []byte(`{"schema_version": "2.1.0", "next_id": 1, "records": {}}`)
		require.NoError(t, os.WriteFile(s.FilePath(), data, 0o600))

		_, _, err := s.FetchByID(ctx, 1)
		require.ErrorIs(t, err, ErrStoreCorrupted)
		assert.Contains(t, err.Error(), "unsupported schema_version")
	})

	t.Run("compatible minor schema version", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)
		data := []byte(`{"schema_version": "1.3.0", "records": {"9": {"id": 9, "name": "x"}}}`)
		require.NoError(t, os.WriteFile(s.FilePath(), data, 0o600))

		ids, err := s.ListIdentifiers(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{9}, ids)

		created, err := s.Create(Record{Name: "y"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), created[0].ID)
	})
}
