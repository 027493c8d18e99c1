package replay

import (
	"github.com/danielpatrickdp/lucid/internal/cognitive"
	"github.com/danielpatrickdp/lucid/internal/eval"
	"github.com/danielpatrickdp/lucid/internal/logging"
	"github.com/danielpatrickdp/lucid/internal/safety"
	"github.com/danielpatrickdp/lucid/internal/validator"
)

// #region types
// Interaction is a single recorded turn for replay.
type Interaction struct {
	TurnID     string
	Input      string
	Candidates []string // model outputs in attempt order
	Grounding  *cognitive.Unit
	Strategy   string // what the live run chose
	Response   string // what the live run delivered
}

// ReplayConfig bundles the validator and audit configs for a replay run.
type ReplayConfig struct {
	ValidatorConfig validator.Config
	EvalConfig      eval.EvalConfig
}

// DefaultReplayConfig returns the production settings for both stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		ValidatorConfig: validator.DefaultConfig(),
		EvalConfig:      eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of replaying one interaction.
type ReplayResult struct {
	TurnID   string
	Expected string // recorded strategy
	Strategy string // "safety" | "grounded" | "ungrounded" | "regenerated" | "fallback"
	Response string
	Reason   string

	// Validator stage, nil for safety redirects and turns with no candidate
	Report *validator.Report

	// Audit of the replayed response
	EvalResult eval.EvalResult

	// ResponseChanged is true when the replayed text differs from the recorded one.
	ResponseChanged bool
}

// Match reports whether the replay chose the recorded strategy.
func (r ReplayResult) Match() bool {
	return r.Expected == r.Strategy
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns  int
	Matches     int
	Diverged    int
	AuditFailed int
	ByStrategy  map[string]int
}

// #endregion types

// #region replay
// Replay re-runs safety, validation and the audit over recorded candidates.
// No model is called: each turn consumes its own recorded outputs, the first
// as the initial attempt and the second as the single regeneration.
func Replay(interactions []Interaction, config ReplayConfig) []ReplayResult {
	v := validator.New(config.ValidatorConfig)
	audit := eval.NewEvalHarness(config.EvalConfig)
	results := make([]ReplayResult, 0, len(interactions))

	for _, inter := range interactions {
		res := ReplayResult{TurnID: inter.TurnID, Expected: inter.Strategy}

		// 1. Safety
		if check := safety.Check(inter.Input); check.RequiresRedirection {
			res.Strategy = "safety"
			res.Response = check.Response
			res.Reason = "redirect: " + check.Category
			finish(&res, inter, audit)
			results = append(results, res)
			continue
		}

		// 2. Candidates, at most one regeneration
		res.Strategy = "fallback"
		res.Response = validator.Fallback().String()
		res.Reason = "no candidate recorded"
		for n, candidate := range inter.Candidates {
			if n > 1 {
				break
			}
			out := v.Check(candidate, inter.Grounding)
			res.Report = &out.Report
			if !out.Report.Acceptable {
				res.Reason = "candidate rejected"
				continue
			}
			res.Response = out.Response.String()
			res.Reason = "accepted"
			switch {
			case n > 0:
				res.Strategy = "regenerated"
			case inter.Grounding != nil:
				res.Strategy = "grounded"
			default:
				res.Strategy = "ungrounded"
			}
			break
		}

		finish(&res, inter, audit)
		results = append(results, res)
	}

	return results
}

func finish(res *ReplayResult, inter Interaction, audit *eval.EvalHarness) {
	res.EvalResult = audit.Run(res.Response)
	res.ResponseChanged = inter.Response != "" && inter.Response != res.Response
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		ByStrategy: make(map[string]int),
	}
	for _, r := range results {
		if r.Match() {
			s.Matches++
		} else {
			s.Diverged++
		}
		if !r.EvalResult.Passed {
			s.AuditFailed++
		}
		s.ByStrategy[r.Strategy]++
	}
	return s
}

// FromTurnLog converts provenance rows to interactions, oldest first.
// RecentTurns returns newest first, so the order is reversed here.
func FromTurnLog(entries []logging.TurnEntry) []Interaction {
	out := make([]Interaction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		out = append(out, Interaction{
			TurnID:     e.TurnID,
			Input:      e.Input,
			Candidates: e.Candidates,
			Grounding:  e.Grounding,
			Strategy:   e.Strategy,
			Response:   e.Response,
		})
	}
	return out
}

// #endregion replay
