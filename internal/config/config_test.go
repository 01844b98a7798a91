package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analastock/internal/quota"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RAPIDAPI_KEY", "ANALASTOCK_DATA_MODE", "HTTPS_PROXY",
		"SQLITE_PATH", "CRON_REFRESH", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data/analastock.db", cfg.Store.SQLitePath)
	assert.Equal(t, ModeLive, cfg.Data.Mode)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0 30 22 * * 1-5", cfg.Schedule.RefreshCron)
	assert.Contains(t, cfg.Quotas, "yahoo")
	assert.Contains(t, cfg.Quotas, "rapidapi")
	assert.Equal(t, time.Second, cfg.Policy().Base)
	assert.Equal(t, 5, cfg.Policy().MaxAttempts)
	assert.Equal(t, time.Minute, cfg.FetchTimeout())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  sqlite_path: /var/lib/analastock.db
data:
  mode: sample
quotas:
  rapidapi:
    limit: 100
    window_seconds: 86400
    headroom_percent: 50
backoff:
  base_ms: 250
  max_attempts: 2
workers: 2
`), 0o644))

	t.Setenv("SQLITE_PATH", "/tmp/override.db")
	t.Setenv("RAPIDAPI_KEY", "secret-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/override.db", cfg.Store.SQLitePath, "env wins over file")
	assert.Equal(t, "secret-key", cfg.RapidAPI.APIKey)
	assert.Equal(t, ModeSample, cfg.Data.Mode)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Policy().Base)
	assert.Equal(t, 2, cfg.Policy().MaxAttempts)
	// File quotas replace the default set entirely.
	assert.NotContains(t, cfg.Quotas, "yahoo")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	base := func(t *testing.T) *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		return cfg
	}

	cfg := base(t)
	cfg.Data.Mode = "replay"
	assert.Error(t, cfg.Validate())

	cfg = base(t)
	cfg.Workers = -1
	assert.Error(t, cfg.Validate())

	cfg = base(t)
	cfg.Quotas["yahoo"] = QuotaConfig{Limit: 0, WindowSeconds: 3600}
	assert.Error(t, cfg.Validate())

	cfg = base(t)
	cfg.Quotas["yahoo"] = QuotaConfig{Limit: 10, WindowSeconds: 3600, HeadroomPercent: 150}
	assert.Error(t, cfg.Validate())
}

func TestBudgetsApplyHeadroom(t *testing.T) {
	cfg := &Config{Quotas: map[string]QuotaConfig{
		"explicit": {Limit: 100, WindowSeconds: 3600, HeadroomPercent: 50},
		"default":  {Limit: 100, WindowSeconds: 60},
		"tiny":     {Limit: 1, WindowSeconds: 60},
	}}

	budgets := cfg.Budgets()
	assert.Equal(t, quota.Budget{Limit: 50, Window: time.Hour}, budgets["explicit"])
	assert.Equal(t, quota.Budget{Limit: 75, Window: time.Minute}, budgets["default"])
	assert.Equal(t, 1, budgets["tiny"].Limit, "headroom never rounds a budget to zero")
}
