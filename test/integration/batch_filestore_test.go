package integration

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/recbatch/internal/cli"
	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/record"
)

// isolateHome points RECBATCH_HOME at a temp dir and resets global config.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvProjectDir, "")
	t.Setenv(config.EnvStoreFile, "")
	t.Setenv(config.EnvSimulatedDelay, "1ms")
	config.SetConfigPath("")
	t.Cleanup(func() {
		config.ResetGlobalConfigForTest()
		config.SetResolvedProjectDir("")
	})
	return home
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmd("integration")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// TestCLI_SeedDeleteProcessList drives the whole record lifecycle through the CLI.
func TestCLI_SeedDeleteProcessList(t *testing.T) {
	home := isolateHome(t)

	out, err := runCLI(t, "records", "seed", "--count", "50", "--batch-size", "7")
	require.NoError(t, err, out)

	out, err = runCLI(t, "records", "delete", "--yes", "5", "17")
	require.NoError(t, err, out)

	out, err = runCLI(t, "process", "--max-concurrency", "8", "-o", "json")
	require.NoError(t, err, out)

	var doc struct {
		State     string `json:"state"`
		Total     int    `json:"total"`
		Processed int    `json:"processed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	assert.Equal(t, "all_succeeded", doc.State)
	assert.Equal(t, 48, doc.Total)
	assert.Equal(t, 48, doc.Processed)

	store, err := record.NewFileStore(filepath.Join(home, "records.json"))
	require.NoError(t, err)
	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 48)
	for _, r := range recs {
		assert.Equal(t, record.StatusProcessed, r.Status, "record %d", r.ID)
		assert.NotEqual(t, int64(5), r.ID)
		assert.NotEqual(t, int64(17), r.ID)
	}
}

// TestFileStore_ConcurrentCoordinators runs two coordinators, each with its
// own FileStore handle on the same file, at the same time. The file lock must
// keep every write intact.
func TestFileStore_ConcurrentCoordinators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	seed, err := record.NewFileStore(path)
	require.NoError(t, err)
	_, err = seed.Create(make([]record.Record, 40)...)
	require.NoError(t, err)

	outcomes := make([]*engine.Outcome, 2)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, openErr := record.NewFileStore(path)
			if !assert.NoError(t, openErr) {
				return
			}
			coord, coordErr := engine.NewCoordinator(store,
				engine.WithMaxConcurrency(4),
				engine.WithSimulatedDelay(0),
			)
			if !assert.NoError(t, coordErr) {
				return
			}
			outcomes[i], _ = coord.Run(t.Context())
		}()
	}
	wg.Wait()

	for i, out := range outcomes {
		require.NotNil(t, out, "coordinator %d", i)
		assert.True(t, out.OK(), "coordinator %d: %v", i, out.Err)
		assert.Equal(t, 40, out.Processed)
	}

	recs, err := seed.List()
	require.NoError(t, err)
	require.Len(t, recs, 40)
	for _, r := range recs {
		assert.True(t, r.IsProcessed(), "record %d", r.ID)
	}
}
