package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/lucid/internal/lazy"
)

// #region mock
type mockBackend struct {
	hits  []Hit
	err   error
	delay time.Duration
	calls int
	query string
}

func (m *mockBackend) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	m.calls++
	m.query = query
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.hits, m.err
}

func newTestRetriever(b Backend, cfg Config) *Retriever {
	return NewRetriever(lazy.Of(b), cfg, nil)
}

// #endregion mock

// #region retrieve-tests
func TestRetrieve_ZeroK(t *testing.T) {
	m := &mockBackend{hits: []Hit{{ID: "a", Content: "x", Score: 0.9}}}
	got, err := newTestRetriever(m, DefaultConfig()).Retrieve(context.Background(), "query", 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result and nil error, got %d, %v", len(got), err)
	}
	if m.calls != 0 {
		t.Errorf("backend should not be called for k=0")
	}
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	got, err := newTestRetriever(&mockBackend{}, DefaultConfig()).Retrieve(context.Background(), "query", 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result and nil error, got %d, %v", len(got), err)
	}
}

func TestRetrieve_SortsDescendingAndTruncates(t *testing.T) {
	m := &mockBackend{hits: []Hit{
		{ID: "low", Content: "low", Score: 0.1},
		{ID: "high", Content: "high", Score: 0.9},
		{ID: "mid-a", Content: "mid a", Score: 0.5},
		{ID: "mid-b", Content: "mid b", Score: 0.5},
	}}
	got, err := newTestRetriever(m, DefaultConfig()).Retrieve(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"high", "mid-a", "mid-b"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].Hit.ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].Hit.ID)
		}
	}
}

func TestRetrieve_BackendError(t *testing.T) {
	m := &mockBackend{err: errors.New("connection refused")}
	got, err := newTestRetriever(m, DefaultConfig()).Retrieve(context.Background(), "query", 3)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result on failure")
	}
}

func TestRetrieve_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond
	m := &mockBackend{delay: time.Second}
	_, err := newTestRetriever(m, cfg).Retrieve(context.Background(), "query", 3)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected unavailable deadline error, got %v", err)
	}
}

func TestRetrieve_LazyInitFailure(t *testing.T) {
	h := lazy.New(func(context.Context) (Backend, error) { return nil, errors.New("no index") })
	_, err := NewRetriever(h, DefaultConfig(), nil).Retrieve(context.Background(), "query", 3)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

// #endregion retrieve-tests

// #region consistency-tests
func TestConsistencyCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxContentLen = 10
	r := newTestRetriever(&mockBackend{}, cfg)
	got := r.consistencyCheck([]Hit{
		{ID: "1", Content: "ok"},
		{ID: "2", Content: "   "},
		{ID: "3", Content: strings.Repeat("x", 11)},
		{ID: "1", Content: "dupe"},
		{ID: "4", Content: "fine"},
	})
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "4" {
		t.Errorf("unexpected consistency result: %+v", got)
	}
}

// #endregion consistency-tests

// #region ground-tests
func TestGround_BuildsUnitFromBestHit(t *testing.T) {
	m := &mockBackend{hits: []Hit{{
		ID:      "u1",
		Content: "Comparison borrows a ruler from someone else.",
		Metadata: map[string]any{
			"core_reframe":  "Comparison borrows a ruler from someone else.",
			"question_bank": []any{"Whose ruler are you measuring with?"},
			"theme_tags":    "comparison, Identity",
		},
		Score: 0.8,
	}}}
	g := newTestRetriever(m, DefaultConfig()).Ground(context.Background(),
		[]string{"I saw my friend's promotion."}, "I feel behind everyone")
	if g.Unit == nil {
		t.Fatalf("expected a grounded unit, err=%v", g.Err)
	}
	if g.Unit.UserInput != "I feel behind everyone" {
		t.Errorf("unit should carry the raw input, got %q", g.Unit.UserInput)
	}
	if len(g.Unit.ThemeTags) != 2 || g.Unit.ThemeTags[0] != "comparison" {
		t.Errorf("unexpected tags %v", g.Unit.ThemeTags)
	}
	if g.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %f", g.Confidence)
	}
	if !strings.HasPrefix(m.query, "Conversation context:\n") {
		t.Errorf("expected expanded query, got %q", m.query)
	}
}

func TestGround_BelowMinScore(t *testing.T) {
	m := &mockBackend{hits: []Hit{{ID: "u1", Content: "weak", Score: 0.05}}}
	g := newTestRetriever(m, DefaultConfig()).Ground(context.Background(), nil, "hello")
	if g.Unit != nil {
		t.Errorf("expected ungrounded turn below MinScore")
	}
	if g.Err != nil {
		t.Errorf("low score is not an error: %v", g.Err)
	}
}

func TestGround_BackendErrorDegrades(t *testing.T) {
	m := &mockBackend{err: errors.New("down")}
	g := newTestRetriever(m, DefaultConfig()).Ground(context.Background(), nil, "hello")
	if g.Unit != nil || !errors.Is(g.Err, ErrUnavailable) {
		t.Errorf("expected degraded grounding, got unit=%v err=%v", g.Unit, g.Err)
	}
}

// #endregion ground-tests

// #region expand-tests
func TestExpandQuery(t *testing.T) {
	if got := ExpandQuery(nil, "now", 4); got != "now" {
		t.Errorf("empty history should return input, got %q", got)
	}
	got := ExpandQuery([]string{"one", " ", "two", "three"}, "now", 2)
	want := "Conversation context:\ntwo\nthree\n\nCurrent input:\nnow"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// #endregion expand-tests

// #region keyword-tests
func TestKeywordBackend(t *testing.T) {
	kb := NewKeywordBackend()
	hits, err := kb.Search(context.Background(), "I feel like I am failing at everything lately", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != "builtin-failing" {
		t.Fatalf("expected failing unit first, got %+v", hits)
	}

	hits, _ = kb.Search(context.Background(), "so tired and anxious, I'm exhausted", 3)
	if len(hits) != 2 || hits[0].ID != "builtin-tired" {
		t.Errorf("expected tired ranked above anxious, got %+v", hits)
	}

	hits, _ = kb.Search(context.Background(), "the weather is nice", 3)
	if len(hits) != 0 {
		t.Errorf("expected no hits, got %+v", hits)
	}
}

func TestKeywordBackend_ThroughRetriever(t *testing.T) {
	r := newTestRetriever(NewKeywordBackend(), DefaultConfig())
	g := r.Ground(context.Background(), nil, "I feel stuck in my life")
	if g.Unit == nil {
		t.Fatalf("expected grounded unit")
	}
	if g.Unit.QuestionBank[0] != "What does being stuck protect you from having to face?" {
		t.Errorf("unexpected question bank %v", g.Unit.QuestionBank)
	}
}

// #endregion keyword-tests
