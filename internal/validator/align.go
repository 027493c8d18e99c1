package validator

import (
	"github.com/danielpatrickdp/lucid/internal/cognitive"
	"github.com/danielpatrickdp/lucid/internal/lexical"
)

// #region alignment

// Alignment scores lexical overlap between a response and its grounding:
// the question against the closest question-bank entry and the framing
// against the core reframe, averaged over whichever sides exist.
// ok is false when the unit offers nothing to compare against.
func Alignment(resp FormattedResponse, unit *cognitive.Unit) (score float64, ok bool) {
	if unit == nil {
		return 0, false
	}
	var sum float64
	var sides int

	if len(unit.QuestionBank) > 0 {
		q := lexical.Tokenize(resp.Question)
		best := 0.0
		for _, candidate := range unit.QuestionBank {
			if s := lexical.Jaccard(q, lexical.Tokenize(candidate)); s > best {
				best = s
			}
		}
		sum += best
		sides++
	}
	if unit.CoreReframe != "" {
		sum += lexical.Jaccard(lexical.Tokenize(resp.Framing), lexical.Tokenize(unit.CoreReframe))
		sides++
	}
	if sides == 0 {
		return 0, false
	}
	return sum / float64(sides), true
}

// #endregion alignment
