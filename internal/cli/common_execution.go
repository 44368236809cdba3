package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/engine/batch"
	"github.com/rshade/recbatch/internal/logging"
	"github.com/rshade/recbatch/internal/record"
)

// openStore opens the file store named by the global configuration.
func openStore(ctx context.Context) (*record.FileStore, error) {
	log := logging.FromContext(ctx)

	path, err := config.GetGlobalConfig().StoreFile()
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}

	store, err := record.NewFileStore(path)
	if err != nil {
		log.Error().Err(err).Str("store_path", path).Msg("failed to open record store")
		return nil, fmt.Errorf("opening record store: %w", err)
	}
	log.Debug().Str("store_path", store.FilePath()).Msg("record store opened")

	return store, nil
}

// batchSettings is the effective coordinator configuration after flag overrides.
type batchSettings struct {
	MaxConcurrency int
	UnitTimeout    time.Duration
	BatchTimeout   time.Duration
	SimulatedDelay time.Duration
	PersistRetries int
	RetryBackoff   time.Duration
}

func settingsFromConfig(cfg config.BatchConfig) batchSettings {
	return batchSettings{
		MaxConcurrency: cfg.MaxConcurrency,
		UnitTimeout:    cfg.UnitTimeout,
		BatchTimeout:   cfg.BatchTimeout,
		SimulatedDelay: cfg.SimulatedDelay,
		PersistRetries: cfg.PersistRetries,
		RetryBackoff:   cfg.RetryBackoff,
	}
}

// newCoordinator builds a coordinator over store from settings.
func newCoordinator(store record.Store, s batchSettings, onProgress batch.ProgressCallback) (*engine.Coordinator, error) {
	opts := []engine.Option{
		engine.WithMaxConcurrency(s.MaxConcurrency),
		engine.WithUnitTimeout(s.UnitTimeout),
		engine.WithBatchTimeout(s.BatchTimeout),
		engine.WithSimulatedDelay(s.SimulatedDelay),
		engine.WithPersistRetries(s.PersistRetries, s.RetryBackoff),
	}
	if onProgress != nil {
		opts = append(opts, engine.WithProgress(onProgress))
	}
	return engine.NewCoordinator(store, opts...)
}
