package generation

import (
	"context"
	"fmt"
)

// ProviderConfig selects a model provider.
type ProviderConfig struct {
	Provider     string // "openai", "gemini" or "static"
	Model        string
	OpenAIAPIKey string
	GeminiAPIKey string
}

// NewBackend builds the Backend named by cfg.Provider. Remote backends are
// constructed by the caller since they own a connection.
func NewBackend(ctx context.Context, cfg ProviderConfig) (Backend, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model)
	case "gemini":
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model)
	case "static", "":
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("generation: unknown provider %q", cfg.Provider)
	}
}
