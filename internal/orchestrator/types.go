package orchestrator

// #region imports
import (
	"context"
	"time"

	"github.com/danielpatrickdp/lucid/internal/retrieval"
	"github.com/danielpatrickdp/lucid/internal/safety"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

// #endregion

// #region state

// State is one step of the per-turn state machine.
type State string

const (
	StateSafetyCheck    State = "SAFETY_CHECK"
	StateRetrieve       State = "RETRIEVE"
	StateBuildPrompt    State = "BUILD_PROMPT"
	StateGenerate       State = "GENERATE"
	StateValidate       State = "VALIDATE"
	StateRegenerateOnce State = "REGENERATE_ONCE"
	StateRepairDone     State = "REPAIR_DONE"
	StateRespond        State = "RESPOND"
)

// #endregion

// #region strategy

// Strategy names how the final response was produced.
type Strategy string

const (
	StrategyGrounded      Strategy = "grounded"
	StrategyUngrounded    Strategy = "ungrounded"
	StrategyRegenerated   Strategy = "regenerated"
	StrategyFallback      Strategy = "fallback"
	StrategySafety        Strategy = "safety"
	StrategyInputRejected Strategy = "input_rejected"
)

// #endregion

// #region metadata

// Metadata is returned with every response for observability. None of it is
// shown to the end user and none of it feeds back into validation.
type Metadata struct {
	TurnID            string      `json:"turn_id"`
	Strategy          Strategy    `json:"strategy"`
	Risk              safety.Risk `json:"risk"`
	SafetyCategory    string      `json:"safety_category,omitempty"`
	Themes            []string    `json:"themes,omitempty"`
	Emotions          []string    `json:"emotions,omitempty"`
	CognitivePatterns []string    `json:"cognitive_patterns,omitempty"`
	ValueConflicts    []string    `json:"value_conflicts,omitempty"`
	Focus             string      `json:"focus,omitempty"`
	Grounded          bool        `json:"grounded"`
	RetrievalScore    float64     `json:"retrieval_score"`
	Confidence        float64     `json:"confidence"`
	Violations        []string    `json:"violations,omitempty"`
	Degraded          []string    `json:"degraded,omitempty"`
	Attempts          int         `json:"attempts"`
	States            []State     `json:"states"`
	InputError        string      `json:"input_error,omitempty"`
}

// Map flattens the metadata for transports that carry loose maps.
func (m Metadata) Map() map[string]any {
	states := make([]any, len(m.States))
	for i, s := range m.States {
		states[i] = string(s)
	}
	out := map[string]any{
		"turn_id":         m.TurnID,
		"strategy":        string(m.Strategy),
		"risk":            string(m.Risk),
		"grounded":        m.Grounded,
		"retrieval_score": m.RetrievalScore,
		"confidence":      m.Confidence,
		"attempts":        float64(m.Attempts),
		"states":          states,
	}
	put := func(key string, vals []string) {
		if len(vals) == 0 {
			return
		}
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		out[key] = list
	}
	put("themes", m.Themes)
	put("emotions", m.Emotions)
	put("cognitive_patterns", m.CognitivePatterns)
	put("value_conflicts", m.ValueConflicts)
	put("violations", m.Violations)
	put("degraded", m.Degraded)
	if m.Focus != "" {
		out["focus"] = m.Focus
	}
	if m.SafetyCategory != "" {
		out["safety_category"] = m.SafetyCategory
	}
	if m.InputError != "" {
		out["input_error"] = m.InputError
	}
	return out
}

// Result is the outcome of one reflection turn.
type Result struct {
	Response  string
	SessionID string
	Metadata  Metadata
}

// #endregion

// #region config

// Config holds per-turn policy.
type Config struct {
	Temperature           float64
	RegenerateTemperature float64
	MaxInputChars         int
	HistoryTurns          int
	Validator             validator.Config
}

// DefaultConfig returns production policy.
func DefaultConfig() Config {
	return Config{
		Temperature:           0.6,
		RegenerateTemperature: 0.2,
		MaxInputChars:         1000,
		HistoryTurns:          6,
		Validator:             validator.DefaultConfig(),
	}
}

// #endregion

// #region interfaces

// Grounder finds grounding for a turn. *retrieval.Retriever satisfies it.
type Grounder interface {
	Ground(ctx context.Context, history []string, input string) retrieval.Grounding
}

// Generator makes one model call. *generation.Adapter satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// #endregion

// #region outcome-record

// OutcomeRecord is a single row for reflection_outcomes.
type OutcomeRecord struct {
	TurnID     string
	SessionID  string
	Strategy   Strategy
	Risk       safety.Risk
	Attempts   int
	Confidence float64
	Accepted   bool // final response came from the model rather than a fixed text
	Degraded   bool
	CreatedAt  time.Time
}

// #endregion
