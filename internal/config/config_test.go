package config

import (
	"context"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, environ map[string]string) (*Config, error) {
	t.Helper()
	return load(env.Options{Environment: environ})
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, BackendRAG, cfg.Backend.Kind)
	assert.Equal(t, "http://localhost:8000/chat", cfg.Backend.RAGEndpoint)
	assert.Equal(t, 30*time.Second, cfg.Backend.RAGTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Simulator.ThinkingDelay)
	assert.Equal(t, StoreMemory, cfg.Store.Kind)
	assert.False(t, cfg.AI.Enabled())
	assert.Nil(t, cfg.AI.Temperature)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{
		"PORT":                     "127.0.0.1:9000",
		"BACKEND":                  "ARK",
		"RAG_TIMEOUT":              "5s",
		"SIMULATOR_THINKING_DELAY": "0s",
		"STORE":                    "redis",
		"REDIS_DB":                 "3",
		"ARK_MODEL":                "ep-123",
		"ARK_API_KEY":              "key",
		"ARK_TEMPERATURE":          "0.2",
		"ARK_MAX_TOKENS":           "512",
		"CORS_ALLOWED_ORIGINS":     "http://localhost:5173,https://medassist.example",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, BackendArk, cfg.Backend.Kind)
	assert.Equal(t, 5*time.Second, cfg.Backend.RAGTimeout)
	assert.Zero(t, cfg.Simulator.ThinkingDelay)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	assert.True(t, cfg.AI.Enabled())
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.2, *cfg.AI.Temperature, 1e-9)
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 512, *cfg.AI.MaxTokens)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"port with space": {"PORT": "80 80"},
		"unknown backend": {"BACKEND": "openai"},
		"unknown store":   {"STORE": "sqlite"},
		"bad timeout":     {"RAG_TIMEOUT": "soon"},
		"zero timeout":    {"RAG_TIMEOUT": "0s"},
		"negative delay":  {"SIMULATOR_THINKING_DELAY": "-1s"},
		"bad temperature": {"ARK_TEMPERATURE": "warm"},
		"bad redis db":    {"REDIS_DB": "one"},
	}

	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadFrom(t, environ)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeAddr(t *testing.T) {
	for in, want := range map[string]string{"": ":8080", "9090": ":9090", ":7000": ":7000", "0.0.0.0:80": "0.0.0.0:80"} {
		got, err := normalizeAddr(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNewChatModelRequiresCredentials(t *testing.T) {
	_, err := AIConfig{Model: "ep-1"}.NewChatModel(context.Background())
	assert.Error(t, err)
}
