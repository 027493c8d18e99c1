package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Summary is a compact view of a session for listings.
type Summary struct {
	ID            string    `json:"id"`
	TotalMessages int       `json:"total_messages"`
	UserMessages  int       `json:"user_messages"`
	AgentMessages int       `json:"agent_messages"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
}

// Summarize counts a session's messages by speaker.
func Summarize(s Session) Summary {
	sum := Summary{ID: s.ID, TotalMessages: len(s.Messages), CreatedAt: s.CreatedAt, LastActivity: s.LastActivity}
	for _, m := range s.Messages {
		if m.IsUser {
			sum.UserMessages++
		} else {
			sum.AgentMessages++
		}
	}
	return sum
}

// Export renders the session as indented JSON.
func Export(s Session) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export session %s: %w", s.ID, err)
	}
	return b, nil
}
