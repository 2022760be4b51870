package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://estadisticas.bcrp.gob.pe/estadisticas/series/api", cfg.BCRP.BaseURL)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Fetch.Backoff)
	assert.Equal(t, 30*time.Second, cfg.Fetch.AttemptTimeout)
	assert.Equal(t, 10*time.Second, cfg.Fetch.RecentTimeout)
	assert.Equal(t, 30, cfg.Fetch.RecentLimit)
	assert.Equal(t, DriverSQLite, cfg.Cache.Driver)
	assert.Equal(t, "America/Lima", cfg.Cache.Timezone)
	assert.Equal(t, 5, cfg.Schedule.WindowYears)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Lima", loc.String())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bcrp:
  base_url: https://mirror.example/api
  rate_limit: 2
fetch:
  backoff: 500ms
  max_attempts: 5
cache:
  driver: memory
schedule:
  codes: [PN01271PM, PD04638PD]
`), 0o644))

	t.Setenv("CACHE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://bcrp@localhost/bcrp")
	t.Setenv("INDICATOR_CODES", "PN01271PM, PN00026MM ,")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://mirror.example/api", cfg.BCRP.BaseURL)
	assert.Equal(t, 2.0, cfg.BCRP.RateLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.Backoff)
	assert.Equal(t, 5, cfg.Fetch.MaxAttempts)
	assert.Equal(t, DriverPostgres, cfg.Cache.Driver)
	assert.Equal(t, "postgres://bcrp@localhost/bcrp", cfg.Cache.PostgresURL)
	assert.Equal(t, []string{"PN01271PM", "PN00026MM"}, cfg.Schedule.Codes)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bcrp: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Cache.Driver = "redis" }},
		{"postgres without url", func(c *Config) { c.Cache.Driver = DriverPostgres }},
		{"bad timezone", func(c *Config) { c.Cache.Timezone = "Mars/Olympus" }},
		{"zero attempts", func(c *Config) { c.Fetch.MaxAttempts = -1 }},
		{"negative rate", func(c *Config) { c.BCRP.RateLimit = -1 }},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "123:abc" }},
		{"empty base url", func(c *Config) { c.BCRP.BaseURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
