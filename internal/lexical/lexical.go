// Package lexical holds the token-level text helpers shared by retrieval,
// prompt assembly and validation.
package lexical

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords contains common English words excluded from overlap scoring.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "there": true, "here": true, "am": true, "im": true,
	"feel": true, "feels": true, "like": true, "just": true, "really": true,
}

// #endregion stopwords

// #region tokenize

// Tokenize splits text into unique lowercase non-stopword tokens, in order of first appearance.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		w = strings.ReplaceAll(strings.Trim(w, "'"), "'", "")
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// Words splits text into lowercase words without stopword filtering.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// NormalizeSpace collapses whitespace runs to a single space and trims the ends.
func NormalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// #endregion tokenize

// #region overlap

// Shared returns the count of tokens present in both slices.
func Shared(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	count := 0
	for _, t := range b {
		if set[t] {
			count++
			delete(set, t)
		}
	}
	return count
}

// Jaccard returns |a∩b| / |a∪b| over token sets. Two empty sets score 0.
func Jaccard(a, b []string) float64 {
	union := make(map[string]bool, len(a)+len(b))
	for _, t := range a {
		union[t] = true
	}
	for _, t := range b {
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(Shared(a, b)) / float64(len(union))
}

// Overlap returns the share of a's tokens that also occur in b.
func Overlap(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(Shared(a, b)) / float64(len(a))
}

// #endregion overlap

// #region phrases

// MatchPhrases returns every phrase that occurs in text as a case-insensitive substring,
// in table order.
func MatchPhrases(text string, phrases []string) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			hits = append(hits, p)
		}
	}
	return hits
}

// ContainsAny reports whether lower contains any of the keywords.
func ContainsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// CountAny returns how many of the keywords occur in lower.
func CountAny(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// #endregion phrases
