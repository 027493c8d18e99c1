package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/danielpatrickdp/lucid/internal/lexical"
)

// DefaultHashingDimensions is the vector width of the offline embedder.
const DefaultHashingDimensions = 256

// Hashing is a deterministic feature-hashing embedder over content tokens.
// It needs no network and is used in test mode and for offline corpora.
type Hashing struct {
	dims int
}

func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float32, h.dims)
	for _, tok := range lexical.Tokenize(text) {
		f := fnv.New64a()
		f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dims))
		if sum&(1<<63) != 0 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v, nil
}

func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hashing) Dimensions() int { return h.dims }

func (h *Hashing) Name() string { return "hashing" }
