package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.Collector.SnapshotIntervalMinutes)
	assert.Equal(t, 3, cfg.Collector.OpenRideThreshold)
	assert.InDelta(t, 0.2, cfg.Collector.OpenRideFraction, 1e-9)
	assert.True(t, cfg.Collector.AutoCreateRides)
	assert.Equal(t, 2, cfg.Query.LiveWindowHours)
	assert.True(t, cfg.Query.UseHourlyTables)
	assert.Equal(t, 50, cfg.Query.DefaultLimit)
	assert.Equal(t, 500, cfg.Import.BatchSize)

	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
collector:
  snapshot_interval_minutes: 5
  filter_country: "United States"
query:
  use_hourly_tables: false
http:
  port: 9090
redis:
  cache_ttl: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Collector.SnapshotIntervalMinutes)
	assert.Equal(t, "United States", cfg.Collector.FilterCountry)
	assert.False(t, cfg.Query.UseHourlyTables)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 50, cfg.Query.DefaultLimit)
	assert.Equal(t, 8, cfg.Collector.Workers)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 9090\n"), 0o644))

	t.Setenv("PARKPULSE_HTTP_PORT", "7070")
	t.Setenv("PARKPULSE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero snapshot interval", func(c *Config) { c.Collector.SnapshotIntervalMinutes = 0 }},
		{"negative live window", func(c *Config) { c.Query.LiveWindowHours = -1 }},
		{"zero batch size", func(c *Config) { c.Import.BatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Collector.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
