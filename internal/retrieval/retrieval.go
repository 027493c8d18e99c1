package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
	"github.com/danielpatrickdp/lucid/internal/lazy"
)

// #region retriever
// Retriever searches a lazily constructed backend and turns hits into units.
type Retriever struct {
	backend *lazy.Handle[Backend]
	config  Config
	log     *zap.Logger
}

// NewRetriever creates a Retriever over the given backend handle.
func NewRetriever(backend *lazy.Handle[Backend], config Config, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{backend: backend, config: config, log: log.Named("retrieval")}
}

// Config returns the retriever's configuration.
func (r *Retriever) Config() Config { return r.config }

// #endregion retriever

// #region retrieve
// Retrieve returns up to k units sorted by descending score. k <= 0 or an
// empty corpus yields an empty result and nil error. Backend failures and
// timeouts yield an empty result and an error wrapping ErrUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Scored, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	backend, err := r.backend.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	hits, err := backend.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrUnavailable, err)
	}

	hits = r.consistencyCheck(hits)
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]Scored, len(hits))
	for i, h := range hits {
		out[i] = Scored{
			Unit:  cognitive.FromHit(query, h.Content, h.Metadata),
			Hit:   h,
			Score: h.Score,
		}
	}
	return out, nil
}

// #endregion retrieve

// #region ground
// Ground retrieves for input with recent history folded into the query and
// returns the best unit when it clears MinScore.
func (r *Retriever) Ground(ctx context.Context, history []string, input string) Grounding {
	g := Grounding{Query: ExpandQuery(history, input, r.config.HistoryTurns)}
	scored, err := r.Retrieve(ctx, g.Query, r.config.TopK)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Warn("retrieval degraded", zap.Error(err))
		}
		g.Err = err
		return g
	}
	if len(scored) == 0 {
		return g
	}
	best := scored[0]
	g.Confidence = best.Score
	if best.Score < r.config.MinScore {
		r.log.Debug("best hit below threshold",
			zap.String("id", best.Hit.ID), zap.Float64("score", best.Score))
		return g
	}
	unit := best.Unit
	unit.UserInput = input
	g.Unit = &unit
	return g
}

// #endregion ground

// #region expand-query
// ExpandQuery prefixes input with up to turns recent messages so retrieval
// follows the conversation. Empty history returns input unchanged.
func ExpandQuery(history []string, input string, turns int) string {
	var recent []string
	for _, h := range history {
		if s := strings.TrimSpace(h); s != "" {
			recent = append(recent, s)
		}
	}
	if turns > 0 && len(recent) > turns {
		recent = recent[len(recent)-turns:]
	}
	if len(recent) == 0 || turns <= 0 {
		return input
	}
	return "Conversation context:\n" + strings.Join(recent, "\n") + "\n\nCurrent input:\n" + input
}

// #endregion expand-query

// #region consistency-check
// consistencyCheck drops hits with empty content, overlong content or a
// duplicate ID.
func (r *Retriever) consistencyCheck(hits []Hit) []Hit {
	seen := make(map[string]bool)
	var valid []Hit
	for _, h := range hits {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		if r.config.MaxContentLen > 0 && len(h.Content) > r.config.MaxContentLen {
			continue
		}
		if h.ID != "" && seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		valid = append(valid, h)
	}
	return valid
}

// sortHits orders by descending score; ties keep backend order.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

// #endregion consistency-check
