// Package eval audits responses after the fact. It never repairs anything:
// it re-checks the output contract on text that was already delivered, so
// recorded turns and the fixed safety texts can be verified offline.
package eval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/lucid/internal/validator"
)

// #region eval-harness
// EvalHarness runs the output-contract audit.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	if config.MaxResponseChars <= 0 {
		config.MaxResponseChars = DefaultEvalConfig().MaxResponseChars
	}
	return &EvalHarness{config: config}
}

// Run audits response. Every check is reported even after the first failure.
func (h *EvalHarness) Run(response string) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	text := strings.TrimSpace(response)

	// 1. Exactly one question mark, at the very end
	marks := strings.Count(text, "?")
	check("question_count", float64(marks), marks == 1,
		fmt.Sprintf("%d question marks", marks))
	check("ends_with_question", boolValue(strings.HasSuffix(text, "?")), strings.HasSuffix(text, "?"),
		"does not end with a question")

	// 2. A framing statement before the question
	if h.config.RequireStatement {
		idx := strings.LastIndexAny(strings.TrimSuffix(text, "?"), ".!")
		check("has_statement", boolValue(idx > 0), idx > 0, "no framing statement")
	}

	// 3. Length bound
	n := utf8.RuneCountInString(text)
	check("length", float64(n), n <= h.config.MaxResponseChars,
		fmt.Sprintf("length %d exceeds %d", n, h.config.MaxResponseChars))

	// 4. Forbidden phrasing
	var hits []string
	for _, r := range []validator.Result{
		validator.CheckDirective(text), validator.CheckReassurance(text), validator.CheckGenericTherapy(text),
	} {
		hits = append(hits, r.Violations...)
	}
	check("forbidden_phrases", float64(len(hits)), len(hits) == 0,
		"forbidden phrasing: "+strings.Join(hits, ", "))

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("audit failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("audit failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
