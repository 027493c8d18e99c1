package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
)

// ErrUnavailable marks a backend failure or timeout. Callers degrade to
// ungrounded generation rather than surfacing it.
var ErrUnavailable = errors.New("retrieval backend unavailable")

// #region config
// Config holds limits for retrieval and grounding.
type Config struct {
	TopK          int           // hits requested per turn
	MinScore      float64       // best score below this leaves the turn ungrounded
	MaxContentLen int           // hits with longer content are dropped
	Timeout       time.Duration // per search
	HistoryTurns  int           // prior messages folded into the expanded query
}

// DefaultConfig returns sensible defaults for retrieval.
func DefaultConfig() Config {
	return Config{
		TopK:          3,
		MinScore:      0.2,
		MaxContentLen: 2000,
		Timeout:       2 * time.Second,
		HistoryTurns:  4,
	}
}

// #endregion config

// #region hit
// Hit is one backend result. Score is a similarity: higher is closer.
type Hit struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// Backend searches a corpus of cognitive units.
type Backend interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// #endregion hit

// #region scored
// Scored pairs a retrieved unit with its similarity score.
type Scored struct {
	Unit  cognitive.Unit
	Hit   Hit
	Score float64
}

// Grounding is the outcome of retrieval for one turn. Unit is nil when the
// turn is ungrounded; Err is set when the backend failed.
type Grounding struct {
	Unit       *cognitive.Unit
	Confidence float64
	Query      string
	Err        error
}

// #endregion scored
