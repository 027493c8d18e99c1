// Package embedding turns text into vectors for corpus search.
package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// #region embedder
// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// #endregion embedder

// #region config
// Config selects and configures an embedding provider.
type Config struct {
	Provider     string // "openai", "gemini" or "hashing"
	Model        string
	OpenAIAPIKey string
	GeminiAPIKey string
	Dimensions   int // hashing only
}

// New builds the Embedder named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model)
	case "gemini":
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.Model)
	case "hashing", "":
		return NewHashing(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}

// #endregion config

// #region similarity
// Cosine returns the cosine similarity of a and b, or 0 for empty or
// mismatched vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// #endregion similarity

// #region vector-encoding
// Encode packs v as little-endian float32s.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode is the inverse of Encode. Trailing partial words are ignored.
func Decode(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}

// #endregion vector-encoding
