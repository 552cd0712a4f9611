package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://postgres:@localhost:5432/tax_service?sslmode=disable", cfg.Database.URL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Harvesting.SuggestionTTL())
	assert.Equal(t, 2*time.Minute, cfg.Harvesting.LockTTL())
	assert.Equal(t, uint32(5), cfg.CircuitBreaker.MinRequests)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://tax@db:5432/tax")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://tax@db:5432/tax", cfg.Database.URL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:     ServerConfig{Port: 8080},
			Database:   DatabaseConfig{Driver: DriverMemory},
			Harvesting: HarvestingConfig{SuggestionTTLHours: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"memory driver needs no url", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unsupported database driver"},
		{"postgres without host", func(c *Config) { c.Database.Driver = DriverPostgres }, "incomplete"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"zero ttl", func(c *Config) { c.Harvesting.SuggestionTTLHours = 0 }, "suggestion_ttl_hours"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
