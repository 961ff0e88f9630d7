package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fintrack/internal/config"
)

func freshConfig(t *testing.T) *config.Config {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)
	return config.GetConfig()
}

func TestDefaults(t *testing.T) {
	t.Setenv("FINTRACK_ENV", "test")
	cfg := freshConfig(t)

	assert.Equal(t, "fintrack", cfg.AppName)
	assert.Equal(t, "3000", cfg.AppPort)
	assert.True(t, cfg.IsTest())
	assert.True(t, cfg.GDPREnabled)
	assert.True(t, cfg.IPAnonymization)
	assert.Equal(t, 5*time.Minute, cfg.ActiveSessionTimeout())
	assert.Equal(t, 5*time.Minute, cfg.ActiveUsersWindow())
	assert.Equal(t, 30*time.Second, cfg.BroadcastInterval())
	assert.Equal(t, 90, cfg.DataRetentionDays)
	assert.Equal(t, 100, cfg.TrackRateLimitPerMinute)
	assert.Equal(t, 5, cfg.AuthRateLimitPerMinute)
	assert.Equal(t, "web/dist", cfg.GetPublicDirectory())
	assert.Equal(t, "/", cfg.GetAssetsPrefix())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FINTRACK_ENV", "test")
	t.Setenv("FINTRACK_APP_PORT", "8080")
	t.Setenv("FINTRACK_GDPR_ENABLED", "false")
	t.Setenv("FINTRACK_ACTIVE_SESSION_TIMEOUT_MINUTES", "10")
	t.Setenv("FINTRACK_DATA_RETENTION_DAYS", "30")
	cfg := freshConfig(t)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.False(t, cfg.GDPREnabled)
	assert.Equal(t, 10*time.Minute, cfg.ActiveSessionTimeout())
	assert.Equal(t, 30, cfg.DataRetentionDays)
}

func TestConnectionPoolDefaultsPerEnvironment(t *testing.T) {
	t.Setenv("FINTRACK_ENV", "test")
	cfg := freshConfig(t)

	// Tests run on a single connection for stability.
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.Equal(t, 1, cfg.GetMaxIdleConns())

	t.Setenv("FINTRACK_DB_MAX_OPEN_CONNS", "25")
	cfg = freshConfig(t)
	assert.Equal(t, 25, cfg.GetMaxOpenConns())
}

func TestDatabasePathDerivation(t *testing.T) {
	t.Setenv("FINTRACK_ENV", "test")
	cfg := freshConfig(t)

	assert.Equal(t, "storage/fintrack-test.db", cfg.GetDatabasePath())
}
