package validator

import (
	"errors"
	"strings"
)

// #region fixed-text

const (
	// DefaultQuestion is the question used when nothing better can be synthesized,
	// and the response to empty input.
	DefaultQuestion = "What feels most present for you in this moment?"

	// DefaultFraming is the statement paired with DefaultQuestion in the fixed fallback.
	DefaultFraming = "The pattern reveals the structure behind the appearance."
)

// Fallback returns the fixed, pre-authored two-sentence response.
func Fallback() FormattedResponse {
	return FormattedResponse{Framing: DefaultFraming, Question: DefaultQuestion}
}

// #endregion fixed-text

// #region response

// FormattedResponse is the canonical two-part output shape.
type FormattedResponse struct {
	Framing  string
	Question string
}

// String joins the framing statement and the question with a single space.
func (r FormattedResponse) String() string {
	return strings.TrimSpace(r.Framing + " " + r.Question)
}

// #endregion response

// #region results

// Result is the outcome of one rule, or the aggregate of a full pass.
type Result struct {
	Valid      bool
	Violations []string
	Confidence float64
}

// Report is the aggregate of one validation pass.
type Report struct {
	Result
	Hard             bool    // a hard violation was found in the candidate
	Rejected         bool    // the candidate was replaced by the fixed fallback
	Repaired         bool    // structural repair changed the candidate
	AlignmentChecked bool    // grounding was present and alignment was scored
	Alignment        float64 // lexical alignment with the grounding unit
	LowAlignment     bool
	Acceptable       bool // no hard violation, confidence at or above minimum, alignment not low
}

// Outcome pairs the returned response with the report that produced it.
type Outcome struct {
	Response FormattedResponse
	Report   Report
}

// #endregion results

// #region config

// Config holds the scoring thresholds.
type Config struct {
	MinConfidence      float64 // minimum aggregate confidence for an acceptable response
	AlignmentThreshold float64 // minimum Jaccard alignment with the grounding unit
	MaxResponseChars   int     // responses longer than this take the excess-length penalty
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      0.8,
		AlignmentThreshold: 0.05,
		MaxResponseChars:   280,
	}
}

// #endregion config

// #region input-errors

var (
	ErrEmptyInput   = errors.New("empty input")
	ErrInputTooLong = errors.New("input too long")
)

// #endregion input-errors
