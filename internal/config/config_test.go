package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PresenceTTL)
	assert.Equal(t, 3, cfg.RateLimitCount)
	assert.Equal(t, 2*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 10*time.Second, cfg.RateLimitKeyTTL)
	assert.Equal(t, 2000, cfg.MaxMessageLength)
	assert.Equal(t, BackendMemory, cfg.GroupBackend)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GROUP_BACKEND", "NATS")
	t.Setenv("PRESENCE_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendNats, cfg.GroupBackend)
	assert.Equal(t, 90*time.Second, cfg.PresenceTTL)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STATE_BACKEND", "etcd")
	_, err := Load()
	require.Error(t, err)
}

func TestTokenTTL(t *testing.T) {
	cfg := &Config{TokenExpire: "never"}
	d, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Zero(t, d)

	cfg.TokenExpire = "72h"
	d, err = cfg.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	cfg.TokenExpire = "soon"
	_, err = cfg.TokenTTL()
	assert.Error(t, err)
}
