package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GITLAB_URL", "https://gitlab.example.com")
	t.Setenv("GITLAB_TOKEN", "glpat-test")
	t.Setenv("GITLAB_WEBHOOK_SECRET", "hook-secret")
	t.Setenv("LLM_API_URL", "https://llm.example.com/v1")
	t.Setenv("LLM_MODEL", "qwen2.5-coder")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, 5, cfg.MaxWorkers)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"no gitlab url", "GITLAB_URL"},
		{"no gitlab token", "GITLAB_TOKEN"},
		{"no webhook secret", "GITLAB_WEBHOOK_SECRET"},
		{"no llm api url", "LLM_API_URL"},
		{"no llm model", "LLM_MODEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.unset)
		})
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOCALE", "zh-CN")
	t.Setenv("MAX_WORKERS", "12")
	t.Setenv("LLM_TIMEOUT", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "zh-CN", cfg.Locale)
	assert.Equal(t, 12, cfg.MaxWorkers)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
}
