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

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.RotationBackend)
	assert.Equal(t, 60*time.Second, cfg.AnthropicTimeout)
	assert.Equal(t, 60*time.Second, cfg.OpenRouterTimeout)
	assert.Equal(t, 30*time.Second, cfg.StraicoTimeout)
	assert.Empty(t, cfg.StraicoEndpoints)
	assert.False(t, cfg.EncryptionEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ROTATION_BACKEND", " Redis ")
	t.Setenv("STRAICO_ENDPOINTS", "https://a.example/v1/chat/completions,https://b.example/v0/chat/completions")
	t.Setenv("STRAICO_TIMEOUT", "5s")
	t.Setenv("SECRET_KEY", "k")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendRedis, cfg.RotationBackend)
	assert.Equal(t, []string{"https://a.example/v1/chat/completions", "https://b.example/v0/chat/completions"}, cfg.StraicoEndpoints)
	assert.Equal(t, 5*time.Second, cfg.StraicoTimeout)
	assert.True(t, cfg.EncryptionEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"ROTATION_BACKEND":   "etcd",
		"PORT":               "0",
		"RATE_LIMIT_PER_SEC": "0",
		"RATE_LIMIT_BURST":   "-1",
		"ANTHROPIC_TIMEOUT":  "soon",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
