package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDefaultsRejectsUnknownDriver(t *testing.T) {
	cfg := NewForTesting(t.TempDir())
	cfg.DBDriver = "dynamodb"
	require.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsPostgresRequiresDSN(t *testing.T) {
	cfg := NewForTesting(t.TempDir())
	cfg.DBDriver = "postgres"
	require.Error(t, cfg.ResolveDefaults())

	cfg.PostgresDSN = "postgres://localhost:5432/vitalsync"
	require.NoError(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsProviderCredentials(t *testing.T) {
	cfg := NewForTesting(t.TempDir())
	cfg.OuraEnabled = true
	require.Error(t, cfg.ResolveDefaults())

	cfg.OuraToken = "tok"
	require.NoError(t, cfg.ResolveDefaults())

	cfg.PicoocEnabled = true
	require.Error(t, cfg.ResolveDefaults())
	cfg.PicoocEmail = "a@b.c"
	cfg.PicoocPass = "secret"
	require.NoError(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsClampsWorkers(t *testing.T) {
	cfg := NewForTesting(t.TempDir())
	cfg.SyncWorkers = 0
	require.NoError(t, cfg.ResolveDefaults())
	require.Equal(t, 1, cfg.SyncWorkers)
}
