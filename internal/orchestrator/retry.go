package orchestrator

import "github.com/danielpatrickdp/lucid/internal/validator"

// #region constants

// maxRegenerations bounds the loop: one regeneration, two attempts total.
const maxRegenerations = 1

// #endregion

// #region attempt

// attempt records one generation attempt within a turn.
type attempt struct {
	strict    bool
	candidate string
	outcome   validator.Outcome
	failed    bool // the generation call itself failed
}

// #endregion

// #region should-retry

// shouldRegenerate reports whether another attempt is allowed after attempts.
// Only an unacceptable validation earns a regeneration; a failed generation
// call goes straight to the fallback.
func shouldRegenerate(attempts []attempt) bool {
	if len(attempts) == 0 || len(attempts) > maxRegenerations {
		return false
	}
	latest := attempts[len(attempts)-1]
	if latest.failed {
		return false
	}
	return !latest.outcome.Report.Acceptable
}

// planAttempt returns the prompt variant and temperature for attempt n (0-based).
func (r *Reflector) planAttempt(n int) (strict bool, temperature float64) {
	if n == 0 {
		return false, r.cfg.Temperature
	}
	return true, r.cfg.RegenerateTemperature
}

// #endregion
