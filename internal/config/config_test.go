package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Run from a directory without configs/ so only defaults apply.
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "urlkeeper.db", cfg.Database.Name)
	assert.Empty(t, cfg.Cache.RedisAddr)
	assert.Equal(t, 5, cfg.Cache.ListingTTLMin)
	assert.Equal(t, "urlkeeper_session", cfg.Session.CookieName)
	assert.Equal(t, 10, cfg.OTP.TTLMinutes)
	assert.Equal(t, 5, cfg.OTP.MaxAttempts)
	assert.Equal(t, 15, cfg.OTP.ResetTTLMinutes)
	assert.Equal(t, "https://api.indexnow.org/indexnow", cfg.IndexNow.Endpoint)
	assert.Equal(t, 100, cfg.IndexNow.BufferSize)
	assert.Equal(t, 2, cfg.IndexNow.WorkerCount)
	assert.Equal(t, 20, cfg.IndexNow.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Monitor.IntervalMinutes)
	assert.Equal(t, "info", cfg.Logging.Level)
}
