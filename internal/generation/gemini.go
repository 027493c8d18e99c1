package generation

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini completes prompts with the Gemini API. Replies are plain text.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini generation: API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini generation: create client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(temperature))}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
