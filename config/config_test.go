package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, 5, cfg.App.StartupMaxAttempts)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, int32(2), cfg.Database.MinConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 1024, cfg.Leveling.SettingsCacheSize)
	assert.Equal(t, 30*time.Second, cfg.Leveling.SettingsCacheTTL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.Observability.TracingEndpoint)

	assert.True(t, cfg.StrictAssertions())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
	assert.Error(t, cfg.RequireDatabase())
	assert.Error(t, cfg.RequireDiscord())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_ENV":             "production",
		"APP_DEBUG":           "true",
		"DATABASE_URL":        "postgres://leveler@localhost/leveler",
		"DISCORD_TOKEN":       "token",
		"REDIS_ADDR":          "redis:6379",
		"REDIS_DB":            "3",
		"SETTINGS_CACHE_TTL":  "1m",
		"SETTINGS_CACHE_SIZE": "16",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.StrictAssertions())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.Leveling.SettingsCacheTTL)
	assert.NoError(t, cfg.RequireDatabase())
	assert.NoError(t, cfg.RequireDiscord())
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown env":         {"APP_ENV": "qa"},
		"redis off in prod":   {"APP_ENV": "production", "REDIS_DISABLED": "true"},
		"pool inverted":       {"DB_MIN_CONNS": "20", "DB_MAX_CONNS": "5"},
		"empty cache":         {"SETTINGS_CACHE_SIZE": "0"},
		"bad ratio":           {"TRACING_SAMPLE_RATIO": "2"},
		"unparseable numbers": {"REDIS_DB": "zero"},
	}
	for name, vars := range tests {
		_, err := LoadFrom(vars)
		assert.Error(t, err, name)
	}
}
