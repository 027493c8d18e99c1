// Package config loads lucid's settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// #region types
// Config is the root configuration.
type Config struct {
	DatabasePath string `yaml:"database_path"`
	Listen       string `yaml:"listen"`
	LogLevel     string `yaml:"log_level"`
	Development  bool   `yaml:"development"`
	TestMode     bool   `yaml:"test_mode"`

	Generation GenerationConfig `yaml:"generation"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Session    SessionConfig    `yaml:"session"`
	Validator  ValidatorConfig  `yaml:"validator"`
	Prompt     PromptConfig     `yaml:"prompt"`
}

// GenerationConfig selects the language model.
type GenerationConfig struct {
	Provider              string  `yaml:"provider"` // openai, gemini, static, remote
	Model                 string  `yaml:"model"`
	OpenAIAPIKey          string  `yaml:"openai_api_key"`
	GeminiAPIKey          string  `yaml:"gemini_api_key"`
	RemoteAddr            string  `yaml:"remote_addr"`
	Temperature           float64 `yaml:"temperature"`
	RegenerateTemperature float64 `yaml:"regenerate_temperature"`
	MaxTokens             int     `yaml:"max_tokens"`
	Timeout               string  `yaml:"timeout"`
}

// EmbeddingConfig selects the corpus embedder.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, gemini, hashing
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// RetrievalConfig selects the retrieval backend and its limits.
type RetrievalConfig struct {
	Provider      string  `yaml:"provider"` // corpus, keyword, remote
	RemoteAddr    string  `yaml:"remote_addr"`
	Dataset       string  `yaml:"dataset"`
	TopK          int     `yaml:"top_k"`
	MinScore      float64 `yaml:"min_score"`
	MaxContentLen int     `yaml:"max_content_len"`
	HistoryTurns  int     `yaml:"history_turns"`
	Timeout       string  `yaml:"timeout"`
}

// SessionConfig bounds conversation memory.
type SessionConfig struct {
	Store         string `yaml:"store"` // sqlite, memory
	MaxMessages   int    `yaml:"max_messages"`
	IdleTimeout   string `yaml:"idle_timeout"`
	SweepInterval string `yaml:"sweep_interval"`
}

// ValidatorConfig holds output acceptance thresholds.
type ValidatorConfig struct {
	MinConfidence      float64 `yaml:"min_confidence"`
	AlignmentThreshold float64 `yaml:"alignment_threshold"`
	MaxResponseChars   int     `yaml:"max_response_chars"`
	MaxInputChars      int     `yaml:"max_input_chars"`
}

// PromptConfig shapes prompt assembly.
type PromptConfig struct {
	HistoryTurns int `yaml:"history_turns"`
}

// #endregion types

// #region defaults
// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "lucid.db",
		Listen:       "localhost:50061",
		LogLevel:     "info",
		Generation: GenerationConfig{
			Provider:              "openai",
			Model:                 "gpt-4o-mini",
			Temperature:           0.6,
			RegenerateTemperature: 0.2,
			MaxTokens:             150,
			Timeout:               "20s",
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider(),
			Model:    "text-embedding-3-small",
		},
		Retrieval: RetrievalConfig{
			Provider:      "corpus",
			TopK:          3,
			MinScore:      0.2,
			MaxContentLen: 2000,
			HistoryTurns:  4,
			Timeout:       "2s",
		},
		Session: SessionConfig{
			Store:         "sqlite",
			MaxMessages:   20,
			IdleTimeout:   "30m",
			SweepInterval: "1m",
		},
		Validator: ValidatorConfig{
			MinConfidence:      0.8,
			AlignmentThreshold: 0.05,
			MaxResponseChars:   280,
			MaxInputChars:      1000,
		},
		Prompt: PromptConfig{HistoryTurns: 6},
	}
}

// defaultEmbeddingProvider embeds with OpenAI when its key is in the
// environment and falls back to the offline hashing embedder otherwise.
func defaultEmbeddingProvider() string {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return "openai"
	}
	return "hashing"
}

// #endregion defaults

// #region load
// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies LUCID_* and provider key variables.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Generation.OpenAIAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Generation.GeminiAPIKey = key
	}
	if v := os.Getenv("LUCID_DB"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("LUCID_GEN_PROVIDER"); v != "" {
		c.Generation.Provider = v
	}
	if v := os.Getenv("LUCID_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("LUCID_EMBED_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("LUCID_RETRIEVAL_PROVIDER"); v != "" {
		c.Retrieval.Provider = v
	}
	if v := os.Getenv("LUCID_CODEC_ADDR"); v != "" {
		c.Generation.RemoteAddr = v
		c.Retrieval.RemoteAddr = v
	}
	if v := os.Getenv("LUCID_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("LUCID_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LUCID_TEST_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.TestMode = b
		}
	}
	if c.TestMode {
		c.Generation.Provider = "static"
		c.Embedding.Provider = "hashing"
	}
}

// #endregion load

// #region durations
func parseOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetGenerationTimeout returns the per-call generation timeout.
func (c *Config) GetGenerationTimeout() time.Duration {
	return parseOr(c.Generation.Timeout, 20*time.Second)
}

// GetRetrievalTimeout returns the per-search retrieval timeout.
func (c *Config) GetRetrievalTimeout() time.Duration {
	return parseOr(c.Retrieval.Timeout, 2*time.Second)
}

// GetIdleTimeout returns how long a session may sit idle.
func (c *Config) GetIdleTimeout() time.Duration {
	return parseOr(c.Session.IdleTimeout, 30*time.Minute)
}

// GetSweepInterval returns how often idle sessions are expired.
func (c *Config) GetSweepInterval() time.Duration {
	return parseOr(c.Session.SweepInterval, time.Minute)
}

// #endregion durations

// #region validate
var (
	ValidGenerationProviders = []string{"openai", "gemini", "static", "remote"}
	ValidEmbeddingProviders  = []string{"openai", "gemini", "hashing"}
	ValidRetrievalProviders  = []string{"corpus", "keyword", "remote"}
	ValidSessionStores       = []string{"sqlite", "memory"}
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(ValidGenerationProviders, c.Generation.Provider) {
		return fmt.Errorf("invalid generation provider: %s (valid: %v)", c.Generation.Provider, ValidGenerationProviders)
	}
	if !slices.Contains(ValidEmbeddingProviders, c.Embedding.Provider) {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}
	if !slices.Contains(ValidRetrievalProviders, c.Retrieval.Provider) {
		return fmt.Errorf("invalid retrieval provider: %s (valid: %v)", c.Retrieval.Provider, ValidRetrievalProviders)
	}
	if !slices.Contains(ValidSessionStores, c.Session.Store) {
		return fmt.Errorf("invalid session store: %s (valid: %v)", c.Session.Store, ValidSessionStores)
	}
	if c.usesProvider("openai") && c.Generation.OpenAIAPIKey == "" {
		return fmt.Errorf("OpenAI API key not configured (set OPENAI_API_KEY or LUCID_TEST_MODE=1)")
	}
	if c.usesProvider("gemini") && c.Generation.GeminiAPIKey == "" {
		return fmt.Errorf("Gemini API key not configured (set GEMINI_API_KEY or LUCID_TEST_MODE=1)")
	}
	if (c.Generation.Provider == "remote" || c.Retrieval.Provider == "remote") &&
		c.Generation.RemoteAddr == "" && c.Retrieval.RemoteAddr == "" {
		return fmt.Errorf("remote provider selected but LUCID_CODEC_ADDR is not set")
	}
	for name, t := range map[string]float64{
		"temperature":            c.Generation.Temperature,
		"regenerate_temperature": c.Generation.RegenerateTemperature,
	} {
		if t < 0 || t > 2 {
			return fmt.Errorf("%s must be in [0, 2], got %v", name, t)
		}
	}
	if c.Validator.MinConfidence < 0 || c.Validator.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0, 1], got %v", c.Validator.MinConfidence)
	}
	if c.Validator.AlignmentThreshold < 0 || c.Validator.AlignmentThreshold > 1 {
		return fmt.Errorf("alignment_threshold must be in [0, 1], got %v", c.Validator.AlignmentThreshold)
	}
	if c.Session.MaxMessages < 0 {
		return fmt.Errorf("max_messages must not be negative")
	}
	return nil
}

func (c *Config) usesProvider(p string) bool {
	return c.Generation.Provider == p || c.Embedding.Provider == p
}

// #endregion validate
