package cli_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rshade/recbatch/internal/cli"
	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/record"
)

// setupCLITest isolates RECBATCH_HOME and the global config and returns the
// store path commands will use.
func setupCLITest(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvProjectDir, "")
	t.Setenv(config.EnvStoreFile, "")
	t.Setenv(config.EnvMaxConcurrency, "")
	t.Setenv(config.EnvSimulatedDelay, "0s")
	config.SetConfigPath("")
	t.Cleanup(func() {
		config.ResetGlobalConfigForTest()
		config.SetResolvedProjectDir("")
		config.SetConfigPath("")
	})
	return filepath.Join(home, "records.json")
}

// executeCmd runs the root command with args and returns combined output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedStore writes n records to the file store at path.
func seedStore(t *testing.T, path string, n int) *record.FileStore {
	t.Helper()
	store, err := record.NewFileStore(path)
	require.NoError(t, err)
	recs := make([]record.Record, n)
	for i := range recs {
		recs[i] = record.Record{Name: "r", Status: "NEW"}
	}
	_, err = store.Create(recs...)
	require.NoError(t, err)
	return store
}
