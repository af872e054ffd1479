package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the sync service.
// Environment variables are parsed from the VITALSYNC_ prefix,
// e.g. VITALSYNC_HTTP_PORT, VITALSYNC_DB_DRIVER.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage backend: postgres, sqlite or file
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"vitalsync.db"`
	FileDir     string `envconfig:"FILE_DIR" default:"data"`

	// Sync behaviour
	SyncInterval   time.Duration `envconfig:"SYNC_INTERVAL" default:"30m"`
	BackfillWindow time.Duration `envconfig:"BACKFILL_WINDOW" default:"720h"`
	CycleTimeout   time.Duration `envconfig:"CYCLE_TIMEOUT" default:"5m"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"2m"`
	StorageTimeout time.Duration `envconfig:"STORAGE_TIMEOUT" default:"30s"`
	SyncWorkers    int           `envconfig:"SYNC_WORKERS" default:"4"`

	// Idempotency guard mark window
	GuardTTL time.Duration `envconfig:"GUARD_TTL" default:"5m"`

	// Oura provider
	OuraEnabled bool   `envconfig:"OURA_ENABLED" default:"false"`
	OuraToken   string `envconfig:"OURA_TOKEN" default:""`
	OuraBaseURL string `envconfig:"OURA_BASE_URL" default:"https://api.ouraring.com"`

	// Picooc provider
	PicoocEnabled bool   `envconfig:"PICOOC_ENABLED" default:"false"`
	PicoocEmail   string `envconfig:"PICOOC_EMAIL" default:""`
	PicoocPass    string `envconfig:"PICOOC_PASSWORD" default:""`
	PicoocBaseURL string `envconfig:"PICOOC_BASE_URL" default:"https://api2.picooc-int.com"`

	// CSV import source (path empty = disabled)
	CSVPath string `envconfig:"CSV_PATH" default:""`
}

// ResolveDefaults validates driver selection and sync knobs.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
		}
	case "sqlite", "file":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.SyncWorkers <= 0 {
		c.SyncWorkers = 1
	}
	if c.BackfillWindow <= 0 {
		return fmt.Errorf("BACKFILL_WINDOW must be positive")
	}
	if c.OuraEnabled && c.OuraToken == "" {
		return fmt.Errorf("OURA_ENABLED requires OURA_TOKEN")
	}
	if c.PicoocEnabled && (c.PicoocEmail == "" || c.PicoocPass == "") {
		return fmt.Errorf("PICOOC_ENABLED requires PICOOC_EMAIL and PICOOC_PASSWORD")
	}
	return nil
}

// New creates a Config by parsing VITALSYNC_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("VITALSYNC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests: file backend in a
// caller-supplied directory, no providers enabled, short timeouts.
func NewForTesting(dir string) *Config {
	return &Config{
		HTTPPort:       8080,
		DBDriver:       "file",
		FileDir:        dir,
		SyncInterval:   time.Minute,
		BackfillWindow: 30 * 24 * time.Hour,
		CycleTimeout:   10 * time.Second,
		FetchTimeout:   5 * time.Second,
		StorageTimeout: 5 * time.Second,
		SyncWorkers:    2,
		GuardTTL:       time.Minute,
	}
}

// GetHTTPAddr returns the HTTP server listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
