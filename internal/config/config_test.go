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

	assert.Equal(t, ":8100", cfg.Addr)
	assert.Equal(t, "agent-platform.db", cfg.DBPath)
	assert.Equal(t, "qwen-turbo", cfg.LLMModel)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 2, cfg.LLMMaxRetries)
	assert.Empty(t, cfg.LLMAPIKey)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ADDR", ":9000")
	t.Setenv("LLM_API_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("LLM_MODEL", "llama3.1:8b")
	t.Setenv("LLM_TIMEOUT_SECONDS", "10")
	t.Setenv("LLM_MAX_RETRIES", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLMBaseURL)
	assert.Equal(t, "secret", cfg.LLMAPIKey)
	assert.Equal(t, "llama3.1:8b", cfg.LLMModel)
	assert.Equal(t, 10*time.Second, cfg.LLMTimeout)
	assert.Zero(t, cfg.LLMMaxRetries)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LLM_TIMEOUT_SECONDS", "zero")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNegativeRetries(t *testing.T) {
	t.Setenv("LLM_MAX_RETRIES", "-1")
	_, err := Load()
	assert.Error(t, err)
}
