package validator

import (
	"fmt"
	"unicode/utf8"

	"github.com/danielpatrickdp/lucid/internal/lexical"
)

// #region phrase-tables

var directivePhrases = []string{
	"you should", "you must", "you need to", "you have to", "you ought to",
	"i suggest", "i recommend", "i advise", "let me tell you", "the best way",
	"it would be better if", "try to", "consider", "it may help", "it might help",
	"it might be useful", "take a step", "remember that", "maybe you could",
	"perhaps you could", "what if you", "have you thought", "you could try",
}

var reassurancePhrases = []string{
	"it's okay", "it is okay", "that's okay", "that's normal", "that is normal",
	"it's normal", "you'll be fine", "you will be fine", "you're not alone",
	"you are not alone", "don't worry", "everything will be okay",
	"everything will be fine", "it's understandable", "completely understandable",
	"be gentle with yourself", "you've got this",
}

var genericTherapyPhrases = []string{
	"how does that make you feel", "how does this make you feel",
	"how did that make you feel", "why do you think", "what feelings arise",
	"what caused", "what happened", "why did it happen", "tell me more",
}

var forbiddenOpenings = []string{
	"it sounds like", "it seems", "you seem to", "you are experiencing",
	"you're experiencing", "i understand how you feel", "i hear you",
}

// #endregion phrase-tables

// #region penalties

// Confidence starts at 1.0 and loses a fixed amount per violation.
const (
	penaltyDirective         = 0.2  // per matched phrase
	penaltyReassurance       = 0.2  // per matched phrase
	penaltyGenericTherapy    = 0.15 // per matched phrase, forbidden openings included
	penaltyMultipleQuestions = 0.15
	penaltyMissingQuestion   = 0.15
	penaltySentenceCount     = 0.1
	penaltyExcessLength      = 0.1
	penaltyLowAlignment      = 0.1
)

// #endregion penalties

// #region rules

// CheckDirective flags directive or advice-giving language.
func CheckDirective(text string) Result {
	return phraseRule(text, directivePhrases, "directive_language", penaltyDirective)
}

// CheckReassurance flags reassurance and normalizing language.
func CheckReassurance(text string) Result {
	return phraseRule(text, reassurancePhrases, "reassurance", penaltyReassurance)
}

// CheckGenericTherapy flags stock therapy questions and forbidden openings.
func CheckGenericTherapy(text string) Result {
	r := phraseRule(text, genericTherapyPhrases, "generic_therapy", penaltyGenericTherapy)
	o := phraseRule(text, forbiddenOpenings, "forbidden_opening", penaltyGenericTherapy)
	return Result{
		Valid:      r.Valid && o.Valid,
		Violations: append(r.Violations, o.Violations...),
		Confidence: clamp(r.Confidence + o.Confidence - 1),
	}
}

// CheckSingleQuestion requires exactly one question clause.
func CheckSingleQuestion(text string) Result {
	n := 0
	for _, c := range segment(text) {
		if c.question {
			n++
		}
	}
	switch {
	case n == 1:
		return Result{Valid: true, Confidence: 1}
	case n == 0:
		return Result{Violations: []string{"missing_question"}, Confidence: 1 - penaltyMissingQuestion}
	default:
		return Result{Violations: []string{fmt.Sprintf("multiple_questions: %d", n)}, Confidence: 1 - penaltyMultipleQuestions}
	}
}

// CheckLength flags responses longer than max runes.
func CheckLength(text string, max int) Result {
	n := utf8.RuneCountInString(text)
	if max <= 0 || n <= max {
		return Result{Valid: true, Confidence: 1}
	}
	return Result{
		Violations: []string{fmt.Sprintf("excess_length: %d > %d", n, max)},
		Confidence: 1 - penaltyExcessLength,
	}
}

// forbidden reports whether text contains any hard-banned phrase.
func forbidden(text string) bool {
	return len(lexical.MatchPhrases(text, directivePhrases)) > 0 ||
		len(lexical.MatchPhrases(text, reassurancePhrases)) > 0 ||
		len(lexical.MatchPhrases(text, genericTherapyPhrases)) > 0 ||
		len(lexical.MatchPhrases(text, forbiddenOpenings)) > 0
}

func phraseRule(text string, phrases []string, label string, penalty float64) Result {
	hits := lexical.MatchPhrases(text, phrases)
	if len(hits) == 0 {
		return Result{Valid: true, Confidence: 1}
	}
	violations := make([]string, len(hits))
	for i, h := range hits {
		violations[i] = label + ": " + h
	}
	return Result{Violations: violations, Confidence: clamp(1 - penalty*float64(len(hits)))}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion rules
