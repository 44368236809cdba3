package record

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"
)

// ErrStoreCorrupted indicates the store file exists but contains invalid data.
var ErrStoreCorrupted = errors.New("record store file corrupted")

// FileStoreSchemaVersion is the schema version written by this build.
const FileStoreSchemaVersion = "1.0.0"

// supportedSchema is the range of schema versions this build can read.
const supportedSchema = ">= 1.0.0, < 2.0.0"

// Lockfile tuning. The in-process mutex is always taken first, so these only
// govern contention with other processes.
const (
	lockMaxRetries = 50
	lockRetryDelay = 20 * time.Millisecond
	staleLockAge   = 30 * time.Second
)

// fileStoreData is the serialized form of the store.
type fileStoreData struct {
	SchemaVersion string           `json:"schema_version"`
	NextID        int64            `json:"next_id"`
	Records       map[int64]Record `json:"records"`
}

// FileStore is a Store persisted as a single JSON file.
//
// The file is the source of truth: every call reads it, and writes go through a
// temp file and rename so readers never observe a partial write. Writers hold
// both the in-process mutex and a cross-process lockfile.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
}

// NewFileStore creates a FileStore backed by filePath.
// If filePath is empty, it defaults to ~/.recbatch/records.json.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("determining home directory: %w", err)
		}
		filePath = filepath.Join(homeDir, ".recbatch", "records.json")
	}
	return &FileStore{filePath: filePath}, nil
}

// FilePath returns the path of the backing file.
func (s *FileStore) FilePath() string {
	return s.filePath
}

// ListIdentifiers returns all record IDs in ascending order.
func (s *FileStore) ListIdentifiers(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	ids := lo.Keys(data.Records)
	slices.Sort(ids)
	return ids, nil
}

// FetchByID returns a copy of the record, or ok=false if it does not exist.
func (s *FileStore) FetchByID(ctx context.Context, id int64) (*Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.read()
	if err != nil {
		return nil, false, err
	}
	rec, ok := data.Records[id]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

// Persist updates an existing record atomically.
func (s *FileStore) Persist(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if rec.ID <= 0 {
		return Record{}, fmt.Errorf("%w: got %d", ErrInvalidID, rec.ID)
	}

	err := s.update(func(data *fileStoreData) error {
		if _, ok := data.Records[rec.ID]; !ok {
			return fmt.Errorf("%w: id %d", ErrNotPersisted, rec.ID)
		}
		data.Records[rec.ID] = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Create stores new records under freshly assigned IDs and returns the stored copies.
func (s *FileStore) Create(recs ...Record) ([]Record, error) {
	created := make([]Record, 0, len(recs))
	err := s.update(func(data *fileStoreData) error {
		for _, rec := range recs {
			rec.ID = data.NextID
			data.NextID++
			data.Records[rec.ID] = rec
			created = append(created, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Delete removes a record. Deleting a missing record is a no-op.
func (s *FileStore) Delete(id int64) error {
	return s.update(func(data *fileStoreData) error {
		delete(data.Records, id)
		return nil
	})
}

// List returns copies of all records ordered by ID.
func (s *FileStore) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	out := lo.Values(data.Records)
	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// update runs fn against the current file contents and writes the result back.
func (s *FileStore) update(fn func(data *fileStoreData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquireFileLock()
	if err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if err = fn(data); err != nil {
		return err
	}
	return s.write(data)
}

// read loads the store file. A missing file yields an empty store.
func (s *FileStore) read() (*fileStoreData, error) {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileStoreData{
				SchemaVersion: FileStoreSchemaVersion,
				NextID:        1,
				Records:       make(map[int64]Record),
			}, nil
		}
		return nil, fmt.Errorf("reading record store file: %w", err)
	}

	var data fileStoreData
	if unmarshalErr := json.Unmarshal(raw, &data); unmarshalErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreCorrupted, unmarshalErr)
	}
	if versionErr := checkSchemaVersion(data.SchemaVersion); versionErr != nil {
		return nil, versionErr
	}

	if data.Records == nil {
		data.Records = make(map[int64]Record)
	}
	for id := range data.Records {
		if id >= data.NextID {
			data.NextID = id + 1
		}
	}
	if data.NextID < 1 {
		data.NextID = 1
	}
	return &data, nil
}

// write saves the store atomically via a temp file.
func (s *FileStore) write(data *fileStoreData) error {
	data.SchemaVersion = FileStoreSchemaVersion
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record store: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if mkdirErr := os.MkdirAll(dir, 0o750); mkdirErr != nil {
		return fmt.Errorf("creating record store directory: %w", mkdirErr)
	}

	tmpPath := s.filePath + ".tmp"
	if writeErr := os.WriteFile(tmpPath, raw, 0o600); writeErr != nil {
		return fmt.Errorf("writing record store temp file: %w", writeErr)
	}
	if renameErr := os.Rename(tmpPath, s.filePath); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming record store temp file: %w", renameErr)
	}
	return nil
}

// checkSchemaVersion rejects files written by an incompatible schema.
func checkSchemaVersion(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: missing schema_version", ErrStoreCorrupted)
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid schema_version %q: %w", ErrStoreCorrupted, raw, err)
	}
	c, err := semver.NewConstraint(supportedSchema)
	if err != nil {
		return fmt.Errorf("parsing schema constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: unsupported schema_version %s (want %s)", ErrStoreCorrupted, v, supportedSchema)
	}
	return nil
}

// acquireFileLock acquires a cross-process advisory lockfile.
// Returns a cleanup function that releases the lock.
func (s *FileStore) acquireFileLock() (func(), error) {
	lockPath := s.filePath + ".lock"

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	for range lockMaxRetries {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}

		if removeStaleLock(lockPath) {
			continue
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("could not acquire lock on %s after retries", lockPath)
}

// removeStaleLock removes a lockfile whose owner is gone.
// Returns true if the lock was removed and the caller should retry.
func removeStaleLock(lockPath string) bool {
	info, statErr := os.Stat(lockPath)
	if statErr != nil || time.Since(info.ModTime()) <= staleLockAge {
		return false
	}
	if isLockHeldByLiveProcess(lockPath) {
		return false
	}
	_ = os.Remove(lockPath)
	return true
}

func isLockHeldByLiveProcess(lockPath string) bool {
	pidData, readErr := os.ReadFile(lockPath)
	if readErr != nil || len(pidData) == 0 {
		return false
	}
	var pid int
	if _, scanErr := fmt.Sscanf(string(pidData), "%d", &pid); scanErr != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 tests process existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
