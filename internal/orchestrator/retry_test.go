package orchestrator

import (
	"testing"

	"github.com/danielpatrickdp/lucid/internal/validator"
)

func outcome(acceptable bool) validator.Outcome {
	return validator.Outcome{Report: validator.Report{Acceptable: acceptable}}
}

func TestShouldRegenerate_NoAttempts(t *testing.T) {
	if shouldRegenerate(nil) {
		t.Error("nothing to regenerate")
	}
}

func TestShouldRegenerate_AcceptableFirstAttempt(t *testing.T) {
	if shouldRegenerate([]attempt{{outcome: outcome(true)}}) {
		t.Error("should not regenerate an acceptable response")
	}
}

func TestShouldRegenerate_UnacceptableFirstAttempt(t *testing.T) {
	if !shouldRegenerate([]attempt{{outcome: outcome(false)}}) {
		t.Error("should regenerate once after an unacceptable response")
	}
}

func TestShouldRegenerate_OnlyOnce(t *testing.T) {
	attempts := []attempt{{outcome: outcome(false)}, {strict: true, outcome: outcome(false)}}
	if shouldRegenerate(attempts) {
		t.Error("second failure must not regenerate again")
	}
}

func TestShouldRegenerate_GenerationFailure(t *testing.T) {
	if shouldRegenerate([]attempt{{failed: true}}) {
		t.Error("failed generation call goes to the fallback")
	}
}

func TestPlanAttempt(t *testing.T) {
	r := &Reflector{cfg: DefaultConfig()}
	strict, temp := r.planAttempt(0)
	if strict || temp != 0.6 {
		t.Errorf("first attempt: strict=%v temp=%v", strict, temp)
	}
	strict, temp = r.planAttempt(1)
	if !strict || temp != 0.2 {
		t.Errorf("regeneration: strict=%v temp=%v", strict, temp)
	}
}
