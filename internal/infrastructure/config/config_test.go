package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_RECON_DB", "/tmp/test-recon.db")

	content := `
storage:
  database_path: ${TEST_RECON_DB}
reconcile:
  amount_tolerance_cents: 100
  date_window_days: 30
observability:
  logging:
    level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-recon.db", cfg.Storage.DatabasePath)
	assert.Equal(t, int64(100), cfg.Reconcile.AmountToleranceCents)
	assert.Equal(t, 30, cfg.Reconcile.DateWindowDays)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	// Unset fields keep defaults.
	assert.Equal(t, 250, cfg.Reconcile.BatchSize)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, "reconcile.db", cfg.Storage.DatabasePath)
	assert.Equal(t, int64(1), cfg.Reconcile.AmountToleranceCents)
	assert.Equal(t, 7, cfg.Reconcile.DateWindowDays)
	assert.Equal(t, 6, cfg.Reconcile.MaxSplitMembers)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadOrEnv_FallsBack(t *testing.T) {
	cfg := LoadOrEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, "reconcile.db", cfg.Storage.DatabasePath)
}
