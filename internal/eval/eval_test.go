package eval

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/lucid/internal/safety"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

func TestEvalPassesOnWellFormedResponse(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run("A feeling often points to something you value. What might this feeling be pointing toward?")

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 5 {
		t.Fatalf("expected 5 metrics, got %d", len(result.Metrics))
	}
}

func TestEvalFailsOnTwoQuestions(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run("Something is shifting. What is it? Where is it going?")

	if result.Passed {
		t.Fatal("expected fail on two questions")
	}
	if got := result.Failed(); len(got) != 1 || got[0] != "question_count" {
		t.Errorf("expected only question_count to fail, got %v", got)
	}
}

func TestEvalFailsOnMissingStatement(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run("What might this feeling be pointing toward?")

	if result.Passed {
		t.Fatal("expected fail without a framing statement")
	}
}

func TestEvalFailsOnLength(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxResponseChars = 20
	h := NewEvalHarness(config)

	result := h.Run("A feeling often points to something you value. What is it?")

	if result.Passed {
		t.Fatal("expected fail on length")
	}
	if !strings.Contains(result.Reason, "length") {
		t.Errorf("expected length in reason, got %q", result.Reason)
	}
}

func TestEvalFailsOnForbiddenPhrasing(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run("You should rest more. Don't worry, what is next?")

	if result.Passed {
		t.Fatal("expected fail on directive and reassurance")
	}
	var forbidden *EvalMetric
	for i := range result.Metrics {
		if result.Metrics[i].Name == "forbidden_phrases" {
			forbidden = &result.Metrics[i]
		}
	}
	if forbidden == nil || forbidden.Value < 2 {
		t.Fatalf("expected two forbidden hits, got %+v", forbidden)
	}
}

// Every fixed text the system can emit must pass its own audit.
func TestEvalFixedTextsPass(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	texts := append(safety.Responses(), validator.Fallback().String())
	for _, text := range texts {
		if r := h.Run(text); !r.Passed {
			t.Errorf("%q: %s", text, r.Reason)
		}
	}
}
