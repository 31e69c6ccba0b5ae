package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.Coach.ProviderTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Coach.RetryDelay)
	assert.Equal(t, "A", cfg.Coach.DefaultPromptVersion)
	assert.Equal(t, "none", cfg.Trace.Exporter)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowOrigin)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\nllm:\n  provider: gemini\n  model: gemini-2.0-flash\n"), 0o600))

	t.Setenv("LLM_MODEL", "gemini-2.5-flash")
	t.Setenv("COACH_PROVIDER_TIMEOUT", "10s")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "")

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 10*time.Second, cfg.Coach.ProviderTimeout)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigin)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestEnvKey(t *testing.T) {
	t.Setenv("TRACE_EXPORTER", "otlp")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HOME_DIR_UNUSED", "x")

	assert.Equal(t, "trace.exporter", envKey("TRACE_EXPORTER"))
	assert.Equal(t, "llm.openai_api_key", envKey("OPENAI_API_KEY"))
	assert.Equal(t, "", envKey("HOME_DIR_UNUSED"))
	assert.Equal(t, "", envKey("COACH_NOT_SET_ANYWHERE"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
