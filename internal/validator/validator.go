// Package validator enforces the response shape: exactly one framing
// statement followed by exactly one open question, free of directive,
// reassuring or stock-therapy phrasing. It repairs what it can and
// substitutes a fixed response for what it cannot. Every entry point is
// total: no input makes it panic or return a malformed response.
package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danielpatrickdp/lucid/internal/analysis"
	"github.com/danielpatrickdp/lucid/internal/cognitive"
)

// #region validator-struct

// Validator is stateless apart from its thresholds and safe for concurrent use.
type Validator struct {
	cfg Config
}

// New returns a Validator with the given thresholds.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAndRepair runs a default-configured validator and returns only the response.
func ValidateAndRepair(candidate string, grounding *cognitive.Unit) FormattedResponse {
	return New(DefaultConfig()).Check(candidate, grounding).Response
}

// #endregion validator-struct

// #region check

// Check validates and repairs candidate against the optional grounding unit.
func (v *Validator) Check(candidate string, grounding *cognitive.Unit) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = v.reject(Report{Result: Result{Confidence: 0}}, fmt.Sprintf("internal_error: %v", r))
		}
	}()

	rep := Report{Result: Result{Confidence: 1}}

	// 1. normalize, 2. segment
	text := normalize(candidate)
	clauses := segment(text)
	if len(clauses) == 0 {
		return v.reject(rep, "empty_candidate")
	}

	// 3. question count
	var question clause
	switch n := countQuestions(clauses); {
	case n == 0:
		rep.add("missing_question", penaltyMissingQuestion)
		question = clause{body: trimTerminal(v.synthQuestion(grounding)), terminator: "?", question: true}
	case n == 1:
		for _, c := range clauses {
			if c.question {
				question = c
			}
		}
	default:
		rep.add(fmt.Sprintf("multiple_questions: %d", n), penaltyMultipleQuestions)
		question = longestQuestion(clauses)
	}

	// 4. sentence count: first statement stays, everything else is dropped
	var statements []clause
	for _, c := range clauses {
		if !c.question {
			statements = append(statements, c)
		}
	}
	var statement clause
	switch {
	case len(statements) == 0:
		rep.add("missing_statement", penaltySentenceCount)
		statement = clause{body: trimTerminal(v.synthFraming(grounding)), terminator: "."}
	case len(statements) == 1:
		statement = statements[0]
	default:
		rep.add(fmt.Sprintf("extra_sentences: %d", len(statements)-1), penaltySentenceCount)
		statement = statements[0]
	}

	// 5. forbidden phrases reject the whole candidate
	hard := false
	for _, r := range []Result{CheckDirective(text), CheckReassurance(text), CheckGenericTherapy(text)} {
		if !r.Valid {
			hard = true
			rep.Violations = append(rep.Violations, r.Violations...)
			rep.Confidence -= 1 - r.Confidence
		}
	}
	if hard {
		rep.Hard = true
		return v.reject(rep, "")
	}

	// 6. terminal punctuation
	term := statementTerminator(statement.terminator)
	if term != statement.terminator || question.terminator != "?" {
		rep.Repaired = true
	}
	resp := FormattedResponse{
		Framing:  statement.body + term,
		Question: question.body + "?",
	}

	// 7. final structural assertion
	if !wellFormed(resp) {
		rep.Hard = true
		return v.reject(rep, "structure_assertion")
	}
	if len(rep.Violations) > 0 {
		rep.Repaired = true
	}

	if lr := CheckLength(resp.String(), v.cfg.MaxResponseChars); !lr.Valid {
		rep.add(lr.Violations[0], penaltyExcessLength)
	}

	// 8. alignment with grounding
	if score, ok := Alignment(resp, grounding); ok {
		rep.AlignmentChecked = true
		rep.Alignment = score
		if score < v.cfg.AlignmentThreshold {
			rep.LowAlignment = true
			rep.add(fmt.Sprintf("low_alignment: %.2f < %.2f", score, v.cfg.AlignmentThreshold), penaltyLowAlignment)
		}
	}

	rep.finish(v.cfg.MinConfidence)
	return Outcome{Response: resp, Report: rep}
}

// #endregion check

// #region reject

func (v *Validator) reject(rep Report, violation string) Outcome {
	if violation != "" {
		rep.Violations = append(rep.Violations, violation)
	}
	rep.Hard = true
	rep.Rejected = true
	rep.finish(v.cfg.MinConfidence)
	return Outcome{Response: Fallback(), Report: rep}
}

func (r *Report) add(violation string, penalty float64) {
	r.Violations = append(r.Violations, violation)
	r.Confidence -= penalty
}

func (r *Report) finish(min float64) {
	r.Confidence = clamp(r.Confidence)
	r.Valid = !r.Hard
	r.Acceptable = !r.Hard && !r.LowAlignment && r.Confidence >= min
}

// #endregion reject

// #region structure

func longestQuestion(cs []clause) clause {
	var best clause
	bestLen := -1
	for _, c := range cs {
		if !c.question {
			continue
		}
		if n := utf8.RuneCountInString(c.body); n > bestLen {
			best, bestLen = c, n
		}
	}
	return best
}

// wellFormed re-segments the joined response: two clauses, statement first,
// one '?', ending in '?', no banned phrase.
func wellFormed(resp FormattedResponse) bool {
	s := resp.String()
	cs := segment(s)
	return len(cs) == 2 &&
		!cs[0].question && cs[1].question &&
		strings.Count(s, "?") == 1 &&
		strings.HasSuffix(s, "?") &&
		!forbidden(s)
}

// statementTerminator keeps a single '!' or an ellipsis as written and
// rewrites every other run to '.'.
func statementTerminator(run string) string {
	switch run {
	case ".", "!", "...":
		return run
	}
	return "."
}

func trimTerminal(s string) string {
	return strings.TrimRightFunc(s, isTerminator)
}

// #endregion structure

// #region synthesis

// synthQuestion picks the first clean question from the grounding bank, then
// the grounding theme's question, then DefaultQuestion.
func (v *Validator) synthQuestion(g *cognitive.Unit) string {
	if g != nil {
		for _, q := range g.QuestionBank {
			if s, ok := cleanClause(q, true); ok {
				return s
			}
		}
		if q, ok := analysis.ThemeQuestion(g.ThemeTags); ok {
			return q
		}
	}
	return DefaultQuestion
}

// synthFraming picks the first statement of the grounding reframe, then the
// theme framing, then DefaultFraming.
func (v *Validator) synthFraming(g *cognitive.Unit) string {
	if g != nil {
		if s, ok := cleanClause(g.CoreReframe, false); ok {
			return s
		}
		if f, ok := analysis.ThemeFraming(g.ThemeTags); ok {
			return f
		}
	}
	return DefaultFraming
}

// cleanClause extracts one clause of the wanted kind from authored text and
// rejects it when it carries a banned phrase.
func cleanClause(text string, wantQuestion bool) (string, bool) {
	cs := segment(normalize(text))
	var pick clause
	found := false
	if wantQuestion {
		if countQuestions(cs) > 0 {
			pick, found = longestQuestion(cs), true
		}
	} else {
		for _, c := range cs {
			if !c.question {
				pick, found = c, true
				break
			}
		}
	}
	if !found {
		return "", false
	}
	out := pick.body + "."
	if wantQuestion {
		out = pick.body + "?"
	}
	if forbidden(out) {
		return "", false
	}
	return out, true
}

// #endregion synthesis
