// Package analysis runs keyword rule tables over user text to tag emotions,
// cognitive patterns, value conflicts and themes. No model call. The tags
// are informational and never influence validation.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/lucid/internal/lexical"
)

// #region types

// Analysis is the keyword-level reading of one user message.
type Analysis struct {
	Emotions          []string
	CognitivePatterns []string
	ValueConflicts    []string
	Themes            []string
	Focus             Focus
}

// #endregion types

// #region analyze

// Analyze tags text. history carries earlier user messages, oldest first;
// a theme seen in two or more of them shifts the focus to pattern recognition.
func Analyze(text string, history ...string) Analysis {
	lower := strings.ToLower(text)
	a := Analysis{
		Emotions:          match(lower, emotionTable, 1),
		CognitivePatterns: match(lower, patternTable, 1),
		ValueConflicts:    match(lower, conflictTable, 2),
		Themes:            match(lower, themeTable, 1),
	}
	a.Focus = selectFocus(a, recurringThemes(a.Themes, history))
	return a
}

func match(lower string, table []category, minHits int) []string {
	var out []string
	for _, c := range table {
		if lexical.CountAny(lower, c.keywords) >= minHits {
			out = append(out, c.name)
		}
	}
	return out
}

func recurringThemes(current []string, history []string) bool {
	if len(current) == 0 || len(history) < 2 {
		return false
	}
	for _, theme := range current {
		seen := 0
		for _, h := range history {
			for _, t := range match(strings.ToLower(h), themeTable, 1) {
				if t == theme {
					seen++
					break
				}
			}
		}
		if seen >= 2 {
			return true
		}
	}
	return false
}

func selectFocus(a Analysis, recurring bool) Focus {
	switch {
	case recurring:
		return FocusPattern
	case len(a.ValueConflicts) > 0:
		return FocusValues
	case len(a.CognitivePatterns) > 0:
		return FocusAssumption
	case len(a.Emotions) > 0:
		return FocusEmotional
	default:
		return FocusPerspective
	}
}

// #endregion analyze

// #region context

// PhilosophicalContext renders the analysis as one line of guidance for the prompt.
// Empty when nothing was detected beyond the default focus.
func PhilosophicalContext(a Analysis) string {
	var parts []string
	for _, c := range a.ValueConflicts {
		parts = append(parts, conflictDescriptions[c])
	}
	if len(a.Themes) > 0 {
		parts = append(parts, "themes of "+strings.Join(a.Themes, ", "))
	}
	if len(parts) == 0 && a.Focus == FocusPerspective {
		return ""
	}
	line := fmt.Sprintf("Inquiry focus: %s (%s).", a.Focus, focusDescriptions[a.Focus])
	if len(parts) > 0 {
		line += " The message carries " + strings.Join(parts, "; ") + "."
	}
	return line
}

// #endregion context

// #region theme-material

// ThemeFraming returns the framing statement for the first known theme in tags.
func ThemeFraming(tags []string) (string, bool) {
	for _, t := range tags {
		if f, ok := themeFramings[t]; ok {
			return f, true
		}
	}
	return "", false
}

// ThemeQuestion returns the reflective question for the first known theme in tags.
func ThemeQuestion(tags []string) (string, bool) {
	for _, t := range tags {
		if q, ok := themeQuestions[t]; ok {
			return q, true
		}
	}
	return "", false
}

// Themes lists every theme with synthesis material, sorted.
func Themes() []string {
	out := make([]string, 0, len(themeFramings))
	for t := range themeFramings {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// #endregion theme-material
