package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "migrations", cfg.MigrationsPath)
	assert.Equal(t, 12*time.Hour, cfg.LateCancelWindow)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.False(t, cfg.SchedulerEnabled)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CRON_SECRET", "cron-s3cret")
	t.Setenv("BETTER_AUTH_SECRET", "auth-s3cret")
	t.Setenv("BETTER_AUTH_URL", "https://studio.example.com")
	t.Setenv("LATE_CANCEL_WINDOW", "6h")
	t.Setenv("WAITLIST_AUTO_PROMOTE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "cron-s3cret", cfg.CronSecret)
	assert.Equal(t, "auth-s3cret", cfg.AuthSecret)
	assert.Equal(t, "https://studio.example.com", cfg.AuthURL)
	assert.Equal(t, 6*time.Hour, cfg.LateCancelWindow)
	assert.True(t, cfg.WaitlistAutoPromote)
}

func TestLoad_AuthSecretFallsBackToJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt-only")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "jwt-only", cfg.AuthSecret)
}
