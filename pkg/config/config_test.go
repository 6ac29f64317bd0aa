package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewater/agencyhub/pkg/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "agency_id", cfg.Auth.AgencyClaim)
	assert.Equal(t, 10*time.Second, cfg.Memory.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Memory.CacheTTL)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.Audit.SweepSchedule)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AGENCYHUB_PORT", "9090")
	t.Setenv("AGENCYHUB_POSTGRES_URL", "postgres://localhost/agencyhub")
	t.Setenv("AGENCYHUB_DB_MAX_OPEN_CONNS", "50")
	t.Setenv("AGENCYHUB_READ_TIMEOUT", "30s")
	t.Setenv("AGENCYHUB_METRICS_ENABLED", "false")
	t.Setenv("AGENCYHUB_LOG_LEVEL", "debug")
	t.Setenv("AGENCYHUB_AUDIT_RETENTION_DAYS", "30")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/agencyhub", cfg.Database.URL)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel())
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
audit:
  retention_days: 14
`), 0o600))
	t.Setenv("AGENCYHUB_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 14, cfg.Audit.RetentionDays)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("non-numeric port rejected", func(t *testing.T) {
		t.Setenv("AGENCYHUB_PORT", "not-a-port")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("zero retention rejected", func(t *testing.T) {
		t.Setenv("AGENCYHUB_AUDIT_RETENTION_DAYS", "0")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("missing config file is an error", func(t *testing.T) {
		t.Setenv("AGENCYHUB_CONFIG_FILE", "/nonexistent/config.yaml")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestParseLogLevelFallback(t *testing.T) {
	t.Setenv("AGENCYHUB_LOG_LEVEL", "nonsense")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, observability.InfoLevel, cfg.LogLevel())
}
