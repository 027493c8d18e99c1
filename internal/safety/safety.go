// Package safety screens user messages before any retrieval or generation.
// Crisis, distress, advice-seeking and dependency language each get a fixed
// or templated response and never reach the model.
package safety

import (
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/danielpatrickdp/lucid/internal/lexical"
)

// #region types

// Risk grades how strongly a message calls for redirection.
type Risk string

const (
	RiskSafe   Risk = "safe"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Result is the outcome of a safety check.
type Result struct {
	RequiresRedirection bool
	Response            string
	Risk                Risk
	Category            string // crisis, distress, advice, dependency; empty when safe
}

// #endregion types

// #region keywords

var crisisKeywords = []string{
	"suicide", "suicidal", "kill myself", "end my life", "want to die",
	"self harm", "self-harm", "hurt myself", "can't go on", "no reason to live",
	"better off dead", "want to disappear",
}

var distressKeywords = []string{
	"crisis", "emergency", "urgent", "can't cope", "overwhelmed",
	"breaking point", "at my limit", "can't take it anymore",
}

var adviceKeywords = []string{
	"what should", "how should", "should i", "tell me what to do", "tell me the answer",
	"give me advice", "recommend", "suggest", "advice", "instructions", "what steps",
	"help me decide", "make decision for me", "make the decision for me",
}

var dependencyKeywords = []string{
	"i can't decide", "i don't know what to do", "i'm lost", "i'm confused",
	"i need help deciding",
}

var dependencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`i can'?t .*without you`),
	regexp.MustCompile(`i need you to .*`),
	regexp.MustCompile(`please tell me .*`),
	regexp.MustCompile(`just tell me .*`),
	regexp.MustCompile(`i don'?t know .*help me`),
}

// #endregion keywords

// #region responses

const (
	crisisResponse = "What you are carrying right now matters deeply, and so do you. " +
		"Would you be willing to reach out to a crisis line such as 988 in the US, or to someone you trust who can be with you through this?"

	distressResponse = "A great deal is pressing on you right now. " +
		"What would it mean to give yourself permission to seek support from someone who can walk alongside you through this?"
)

var adviceRedirects = []string{
	"The answer you are looking for may already be taking shape in you. What wisdom might already be within you about this situation?",
	"Your own knowing has been part of this all along. If you trusted your own knowing, what might you discover?",
	"Questions like this often carry their own answers. What would you tell a friend who came to you with this same question?",
	"Beneath every should there is something quieter. What feels most true for you when you set aside what you think is expected?",
}

var autonomyRedirects = []string{
	"Not knowing can be its own kind of information. What feels most unclear about this situation for you?",
	"A decision is pressing on you. What part of this decision feels most challenging right now?",
	"This question deserves room to unfold. What would exploring this question look like for you?",
	"Confusion often sits next to something important. What inner resources might you draw upon in this moment?",
}

// #endregion responses

// #region check

// Check screens message. Categories are tested from most to least severe.
func Check(message string) Result {
	lower := strings.ToLower(strings.ReplaceAll(message, "’", "'"))

	switch {
	case lexical.ContainsAny(lower, crisisKeywords):
		return Result{RequiresRedirection: true, Response: crisisResponse, Risk: RiskHigh, Category: "crisis"}
	case lexical.ContainsAny(lower, distressKeywords):
		return Result{RequiresRedirection: true, Response: distressResponse, Risk: RiskMedium, Category: "distress"}
	case lexical.ContainsAny(lower, adviceKeywords):
		return Result{RequiresRedirection: true, Response: pick(adviceRedirects, lower), Risk: RiskLow, Category: "advice"}
	case isDependent(lower):
		return Result{RequiresRedirection: true, Response: pick(autonomyRedirects, lower), Risk: RiskLow, Category: "dependency"}
	}
	return Result{Risk: RiskSafe}
}

func isDependent(lower string) bool {
	if lexical.ContainsAny(lower, dependencyKeywords) {
		return true
	}
	for _, re := range dependencyPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// pick chooses a template by hashing the message, so the same message
// always gets the same redirect.
func pick(options []string, lower string) string {
	h := fnv.New32a()
	h.Write([]byte(lexical.NormalizeSpace(lower)))
	return options[h.Sum32()%uint32(len(options))]
}

// #endregion check

// Responses lists every fixed and templated response, for auditing.
func Responses() []string {
	out := []string{crisisResponse, distressResponse}
	out = append(out, adviceRedirects...)
	return append(out, autonomyRedirects...)
}
