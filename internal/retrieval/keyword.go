package retrieval

import (
	"context"
	"strings"
)

// #region keyword-units
type keywordUnit struct {
	id       string
	keywords []string
	reframe  string
	question string
	themes   []string
}

// builtinUnits is a small corpus that needs no index. It is the offline
// backend and the fallback when no dataset has been ingested.
var builtinUnits = []keywordUnit{
	{
		id:       "builtin-failing",
		keywords: []string{"failing", "failure", "failed", "fail"},
		reframe:  "The feeling of failing often comes from measuring against impossible standards that were never meant to be human.",
		question: "What would it look like to separate your worth from your performance?",
		themes:   []string{"failure", "perfection"},
	},
	{
		id:       "builtin-perfectionism",
		keywords: []string{"perfectionism", "perfect", "flawless", "never good enough"},
		reframe:  "Perfectionism is often the armor that protects us from the shame of not being enough.",
		question: "What would happen if you allowed yourself to be imperfect and still worthy?",
		themes:   []string{"perfection"},
	},
	{
		id:       "builtin-tired",
		keywords: []string{"tired", "exhausted", "drained", "burned out"},
		reframe:  "Exhaustion often signals that we're carrying more than we were meant to carry alone.",
		question: "What part of this exhaustion comes from trying to be everything for everyone?",
		themes:   []string{"approval"},
	},
	{
		id:       "builtin-anxious",
		keywords: []string{"anxious", "anxiety", "worried", "nervous"},
		reframe:  "Anxiety is often the body's way of telling us there's something important that needs attention.",
		question: "What is this anxiety trying to protect you from feeling?",
		themes:   []string{"uncertainty", "control"},
	},
	{
		id:       "builtin-stuck",
		keywords: []string{"stuck", "trapped", "going nowhere"},
		reframe:  "Being stuck often means we're standing at the edge of growth, not failure.",
		question: "What does being stuck protect you from having to face?",
		themes:   []string{"identity"},
	},
}

// #endregion keyword-units

// #region keyword-backend
// KeywordBackend matches the query against the built-in units by substring.
// A unit scores 0.5 plus half the fraction of its keywords present.
type KeywordBackend struct{}

// NewKeywordBackend returns the built-in keyword backend.
func NewKeywordBackend() KeywordBackend { return KeywordBackend{} }

func (KeywordBackend) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	lower := strings.ToLower(query)
	var hits []Hit
	for _, u := range builtinUnits {
		matched := 0
		for _, kw := range u.keywords {
			if strings.Contains(lower, kw) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, Hit{
			ID:      u.id,
			Content: u.reframe,
			Metadata: map[string]any{
				"core_reframe":  u.reframe,
				"question_bank": []any{u.question},
				"theme_tags":    toAny(u.themes),
			},
			Score: 0.5 + 0.5*float64(matched)/float64(len(u.keywords)),
		})
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// #endregion keyword-backend

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
