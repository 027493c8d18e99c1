package logging

import (
	"time"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
)

// #region turn-entry
// TurnEntry is a single row in the turn_log table: everything needed to
// replay the validator over one reflection turn.
type TurnEntry struct {
	TurnID     string
	SessionID  string
	Strategy   string // grounded | ungrounded | regenerated | fallback | safety
	Risk       string
	Input      string
	Candidates []string        // raw model outputs, in attempt order
	Grounding  *cognitive.Unit // nil when ungrounded
	Response   string
	Confidence float64
	Violations []string
	States     []string
	CreatedAt  time.Time
}

// #endregion turn-entry
