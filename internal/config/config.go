package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Output format names accepted by OutputConfig.DefaultFormat.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Environment variables that override file configuration.
const (
	EnvHome           = "RECBATCH_HOME"
	EnvProjectDir     = "RECBATCH_PROJECT_DIR"
	EnvMaxConcurrency = "RECBATCH_MAX_CONCURRENCY"
	EnvUnitTimeout    = "RECBATCH_UNIT_TIMEOUT"
	EnvBatchTimeout   = "RECBATCH_BATCH_TIMEOUT"
	EnvSimulatedDelay = "RECBATCH_SIMULATED_DELAY"
	EnvStoreFile      = "RECBATCH_STORE_FILE"
	EnvLogLevel       = "RECBATCH_LOG_LEVEL"
)

// DefaultSimulatedDelay is the per-unit I/O delay applied when none is configured.
const DefaultSimulatedDelay = 100 * time.Millisecond

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

//nolint:gochecknoglobals // Overridden by the --config flag for a single invocation.
var (
	configPathOverride string
	configPathMu       sync.RWMutex
)

// Config is the recbatch configuration file.
type Config struct {
	Batch   BatchConfig   `yaml:"batch"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Output  OutputConfig  `yaml:"output"`
}

// BatchConfig tunes the coordinator.
type BatchConfig struct {
	// MaxConcurrency bounds in-flight units; 0 means unbounded.
	MaxConcurrency int           `yaml:"max_concurrency"`
	UnitTimeout    time.Duration `yaml:"unit_timeout"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
	SimulatedDelay time.Duration `yaml:"simulated_delay"`
	PersistRetries int           `yaml:"persist_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	// File is the JSON record store path. Empty means $RECBATCH_HOME/records.json.
	File string `yaml:"file"`
	// SeedBatchSize is the chunk size used by `records seed`.
	SeedBatchSize int `yaml:"seed_batch_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// OutputConfig configures CLI rendering.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	// Color is "auto", "always" or "never".
	Color string `yaml:"color"`
}

// New returns a Config populated with defaults, the user's config file (if
// any) and environment overrides. Load errors fall back to defaults.
func New() *Config {
	cfg := Default()
	if path, err := ConfigPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			_ = cfg.Load(path)
		}
	}
	cfg.ApplyEnv()
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Batch: BatchConfig{
			SimulatedDelay: DefaultSimulatedDelay,
			RetryBackoff:   50 * time.Millisecond,
		},
		Store: StoreConfig{
			SeedBatchSize: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			DefaultFormat: FormatTable,
			Color:         "auto",
		},
	}
}

// Load reads path and overlays its values onto c.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Save writes c to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Batch.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("batch.max_concurrency must be >= 0, got %d", c.Batch.MaxConcurrency))
	}
	for name, d := range map[string]time.Duration{
		"batch.unit_timeout":    c.Batch.UnitTimeout,
		"batch.batch_timeout":   c.Batch.BatchTimeout,
		"batch.simulated_delay": c.Batch.SimulatedDelay,
		"batch.retry_backoff":   c.Batch.RetryBackoff,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %s", name, d))
		}
	}
	if c.Batch.PersistRetries < 0 {
		errs = append(errs, fmt.Errorf("batch.persist_retries must be >= 0, got %d", c.Batch.PersistRetries))
	}
	if c.Store.SeedBatchSize < 1 || c.Store.SeedBatchSize > 1000 {
		errs = append(errs, fmt.Errorf("store.seed_batch_size must be between 1 and 1000, got %d", c.Store.SeedBatchSize))
	}
	switch c.Output.DefaultFormat {
	case FormatTable, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("output.default_format must be %q or %q, got %q",
			FormatTable, FormatJSON, c.Output.DefaultFormat))
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("output.color must be auto, always or never, got %q", c.Output.Color))
	}
	switch c.Logging.Format {
	case "json", "console", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ApplyEnv overlays RECBATCH_* environment variables. Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	if v, ok := envInt(EnvMaxConcurrency); ok {
		c.Batch.MaxConcurrency = v
	}
	if v, ok := envDuration(EnvUnitTimeout); ok {
		c.Batch.UnitTimeout = v
	}
	if v, ok := envDuration(EnvBatchTimeout); ok {
		c.Batch.BatchTimeout = v
	}
	if v, ok := envDuration(EnvSimulatedDelay); ok {
		c.Batch.SimulatedDelay = v
	}
	if v := os.Getenv(EnvStoreFile); v != "" {
		c.Store.File = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// StoreFile returns the record store path, defaulting to $RECBATCH_HOME/records.json.
func (c *Config) StoreFile() (string, error) {
	if c.Store.File != "" {
		return c.Store.File, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "records.json"), nil
}

// LoadDotEnv loads .env from the working directory into the process
// environment. Existing variables win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// SetConfigPath overrides the config file location.
func SetConfigPath(path string) {
	configPathMu.Lock()
	defer configPathMu.Unlock()
	configPathOverride = path
}

// ConfigPath returns the config file location.
func ConfigPath() (string, error) {
	configPathMu.RLock()
	override := configPathOverride
	configPathMu.RUnlock()
	if override != "" {
		return override, nil
	}

	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envDuration(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}
