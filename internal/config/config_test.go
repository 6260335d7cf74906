package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/crowdcue")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100, cfg.MaxSubscribersPerParty)
	assert.Equal(t, 2*time.Second, cfg.SubscriberPollInterval)
	assert.Equal(t, 6*time.Hour, cfg.SubscriberMaxLifetime)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_MissingRedisURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("MAX_SUBSCRIBERS_PER_PARTY", "5")
	t.Setenv("SUBSCRIBER_POLL_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 5, cfg.MaxSubscribersPerParty)
	assert.Equal(t, 500*time.Millisecond, cfg.SubscriberPollInterval)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_SUBSCRIBERS_PER_PARTY", "lots")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("MAX_SUBSCRIBERS_PER_PARTY", "0")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("MAX_SUBSCRIBERS_PER_PARTY", "10")
	t.Setenv("SUBSCRIBER_POLL_INTERVAL", "soon")
	_, err = Load()
	require.Error(t, err)
}
