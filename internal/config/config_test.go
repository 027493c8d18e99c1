package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "GEMINI_API_KEY", "LUCID_DB", "LUCID_GEN_PROVIDER", "LUCID_MODEL",
		"LUCID_EMBED_PROVIDER", "LUCID_RETRIEVAL_PROVIDER", "LUCID_CODEC_ADDR", "LUCID_LISTEN",
		"LUCID_LOG_LEVEL", "LUCID_TEST_MODE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 20, cfg.Session.MaxMessages)
	assert.Equal(t, 0.6, cfg.Generation.Temperature)
}

func TestLoadOverlaysYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lucid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_path: /tmp/x.db
generation:
  provider: gemini
  temperature: 0.4
session:
  max_messages: 10
  idle_timeout: 5m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, 0.4, cfg.Generation.Temperature)
	assert.Equal(t, 150, cfg.Generation.MaxTokens, "unset keys keep defaults")
	assert.Equal(t, 10, cfg.Session.MaxMessages)
	assert.Equal(t, 5*time.Minute, cfg.GetIdleTimeout())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("provider keys and paths", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("LUCID_DB", "/data/lucid.db")
		t.Setenv("LUCID_CODEC_ADDR", "10.0.0.2:50061")
		t.Setenv("LUCID_RETRIEVAL_PROVIDER", "remote")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "oa-key", cfg.Generation.OpenAIAPIKey)
		assert.Equal(t, "/data/lucid.db", cfg.DatabasePath)
		assert.Equal(t, "10.0.0.2:50061", cfg.Retrieval.RemoteAddr)
		assert.Equal(t, "remote", cfg.Retrieval.Provider)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("test mode forces offline providers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LUCID_TEST_MODE", "1")
		t.Setenv("LUCID_GEN_PROVIDER", "openai")
		t.Setenv("LUCID_EMBED_PROVIDER", "gemini")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.True(t, cfg.TestMode)
		assert.Equal(t, "static", cfg.Generation.Provider)
		assert.Equal(t, "hashing", cfg.Embedding.Provider)
		assert.NoError(t, cfg.Validate())
	})
}

func TestDefaultEmbeddingProviderFollowsOpenAIKey(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, "hashing", DefaultConfig().Embedding.Provider)

	t.Setenv("OPENAI_API_KEY", "oa-key")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.NoError(t, cfg.Validate())

	t.Setenv("LUCID_EMBED_PROVIDER", "hashing")
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Generation.Provider = "llama" }},
		{"missing openai key", func(c *Config) {}},
		{"gemini without key", func(c *Config) { c.Generation.Provider = "gemini" }},
		{"remote without addr", func(c *Config) { c.Generation.Provider = "remote" }},
		{"temperature range", func(c *Config) { c.Generation.Provider = "static"; c.Generation.Temperature = 3 }},
		{"confidence range", func(c *Config) { c.Generation.Provider = "static"; c.Validator.MinConfidence = 1.5 }},
		{"negative cap", func(c *Config) { c.Generation.Provider = "static"; c.Session.MaxMessages = -1 }},
		{"bad store", func(c *Config) { c.Generation.Provider = "static"; c.Session.Store = "redis" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Generation.Provider = "static"
	assert.NoError(t, cfg.Validate())
}

func TestDurationGettersFallBack(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 20*time.Second, cfg.GetGenerationTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetRetrievalTimeout())
	assert.Equal(t, 30*time.Minute, cfg.GetIdleTimeout())
	assert.Equal(t, time.Minute, cfg.GetSweepInterval())
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "lucid.yaml")
	cfg := DefaultConfig()
	cfg.Retrieval.Dataset = "units.json"
	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
