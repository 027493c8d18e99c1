package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
	"github.com/danielpatrickdp/lucid/internal/eval"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureInteraction mirrors replay.Interaction with JSON tags.
type FixtureInteraction struct {
	TurnID     string          `json:"turn_id"`
	Input      string          `json:"input"`
	Candidates []string        `json:"candidates"`
	Grounding  *cognitive.Unit `json:"grounding,omitempty"`
	Strategy   string          `json:"strategy"`
	Response   string          `json:"response"`
}

// FixtureExpectedResult captures the expected strategy per turn.
type FixtureExpectedResult struct {
	TurnID   string `json:"turn_id"`
	Strategy string `json:"strategy"`
}

// FixtureConfig carries the validator thresholds. Zero values take defaults.
type FixtureConfig struct {
	MinConfidence      float64 `json:"min_confidence"`
	AlignmentThreshold float64 `json:"alignment_threshold"`
	MaxResponseChars   int     `json:"max_response_chars"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture exports interactions as a fixture whose expectations are the
// recorded strategies.
func WriteFixture(path, description string, interactions []Interaction) error {
	f := Fixture{Description: description}
	for _, in := range interactions {
		f.Interactions = append(f.Interactions, FixtureInteraction{
			TurnID:     in.TurnID,
			Input:      in.Input,
			Candidates: in.Candidates,
			Grounding:  in.Grounding,
			Strategy:   in.Strategy,
			Response:   in.Response,
		})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{TurnID: in.TurnID, Strategy: in.Strategy})
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToInteraction converts a FixtureInteraction to a domain Interaction.
func (fi *FixtureInteraction) ToInteraction() Interaction {
	return Interaction{
		TurnID:     fi.TurnID,
		Input:      fi.Input,
		Candidates: fi.Candidates,
		Grounding:  fi.Grounding,
		Strategy:   fi.Strategy,
		Response:   fi.Response,
	}
}

// Interactions converts every fixture interaction.
func (f *Fixture) ToInteractions() []Interaction {
	out := make([]Interaction, len(f.Interactions))
	for i := range f.Interactions {
		out[i] = f.Interactions[i].ToInteraction()
	}
	return out
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if fc.MinConfidence > 0 {
		cfg.ValidatorConfig.MinConfidence = fc.MinConfidence
	}
	if fc.AlignmentThreshold > 0 {
		cfg.ValidatorConfig.AlignmentThreshold = fc.AlignmentThreshold
	}
	if fc.MaxResponseChars > 0 {
		cfg.ValidatorConfig.MaxResponseChars = fc.MaxResponseChars
		cfg.EvalConfig = eval.EvalConfig{MaxResponseChars: fc.MaxResponseChars, RequireStatement: true}
	}
	return cfg
}

// #endregion fixture-loader
