// Package cognitive defines the cognitive unit: a pre-authored reframing
// statement paired with question templates and theme tags.
package cognitive

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// #region unit

// Unit is the grounding material for one generation attempt. It is built
// fresh from a retrieval hit and never mutated afterwards.
type Unit struct {
	UserInput     string   `json:"user_input"`
	RetrievedText string   `json:"retrieved_text"`
	CoreReframe   string   `json:"core_reframe"`
	QuestionBank  []string `json:"question_bank,omitempty"`
	ThemeTags     []string `json:"theme_tags,omitempty"`
	RewireTarget  string   `json:"rewire_target,omitempty"`
}

// HasQuestions reports whether the unit carries any question templates.
func (u *Unit) HasQuestions() bool {
	return u != nil && len(u.QuestionBank) > 0
}

// #endregion unit

// #region from-hit

// FromHit builds a Unit from a retrieved record's content and metadata.
// The reframe comes from core_reframe, reframe or short_reframe before
// falling back to the content itself.
func FromHit(userInput, content string, metadata map[string]any) Unit {
	u := Unit{
		UserInput:     userInput,
		RetrievedText: strings.TrimSpace(content),
	}
	u.CoreReframe = firstString(metadata, "core_reframe", "reframe", "short_reframe")
	if u.CoreReframe == "" {
		u.CoreReframe = u.RetrievedText
	}

	bank := stringList(metadata["question_bank"])
	if q := firstString(metadata, "short_question", "question"); q != "" && !contains(bank, q) {
		bank = append(bank, q)
	}
	u.QuestionBank = bank

	u.ThemeTags = normalizeTags(stringList(metadata["theme_tags"]))
	u.RewireTarget = firstString(metadata, "rewire_target")
	return u
}

// #endregion from-hit

// #region helpers

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// stringList accepts a JSON array, a JSON-encoded array string, or a comma separated string.
func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		out = append(out, t...)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				out = arr
				break
			}
		}
		out = strings.Split(s, ",")
	default:
		return nil
	}

	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// #endregion helpers
