// Package factory assembles backends and provider adapters from config.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vitalhub/vitalsync/internal/config"
	"github.com/vitalhub/vitalsync/internal/provider"
	"github.com/vitalhub/vitalsync/internal/provider/csvfile"
	"github.com/vitalhub/vitalsync/internal/provider/oura"
	"github.com/vitalhub/vitalsync/internal/provider/picooc"
	"github.com/vitalhub/vitalsync/internal/store"
	"github.com/vitalhub/vitalsync/internal/store/filestore"
	"github.com/vitalhub/vitalsync/internal/store/postgres"
	"github.com/vitalhub/vitalsync/internal/store/sqlite"
)

// NewBackend opens the storage backend selected by DB_DRIVER. The schema
// is created on open; there is no separate migration step for a
// single-table store.
func NewBackend(cfg *config.Config, log zerolog.Logger) (store.Backend, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Str("driver", "postgres").Msg("storage backend ready")
		return postgres.New(db), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("driver", "sqlite").Str("path", cfg.SQLitePath).Msg("storage backend ready")
		return sqlite.New(db), nil
	case "file":
		b, err := filestore.New(cfg.FileDir)
		if err != nil {
			return nil, fmt.Errorf("open filestore: %w", err)
		}
		log.Info().Str("driver", "file").Str("dir", cfg.FileDir).Msg("storage backend ready")
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// NewSources builds the configured provider adapters. Disabled sources are
// still listed so the API can report them; the orchestrator refuses to
// sync them.
func NewSources(cfg *config.Config, log zerolog.Logger) []provider.Source {
	sources := []provider.Source{
		{
			Name:    oura.SourceName,
			Enabled: cfg.OuraEnabled,
			Adapter: oura.New(oura.Config{
				BaseURL: cfg.OuraBaseURL,
				Token:   cfg.OuraToken,
				Timeout: cfg.FetchTimeout,
			}),
		},
		{
			Name:    picooc.SourceName,
			Enabled: cfg.PicoocEnabled,
			Adapter: picooc.New(picooc.Config{
				BaseURL:  cfg.PicoocBaseURL,
				Email:    cfg.PicoocEmail,
				Password: cfg.PicoocPass,
				Timeout:  cfg.FetchTimeout,
			}),
		},
	}
	if cfg.CSVPath != "" {
		sources = append(sources, provider.Source{
			Name:    csvfile.SourceName,
			Enabled: true,
			Adapter: csvfile.New(cfg.CSVPath),
		})
	}
	for _, s := range sources {
		log.Info().Str("source", s.Name).Bool("enabled", s.Enabled).Msg("source configured")
	}
	return sources
}
