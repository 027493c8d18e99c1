package session

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// trim keeps the newest max messages. If none of the kept messages is from
// the user, the newest dropped user message replaces the oldest kept one so
// the log never loses the person's side of the conversation.
func trim(msgs []Message, max int) []Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	cut := len(msgs) - max
	kept := append([]Message(nil), msgs[cut:]...)
	for _, m := range kept {
		if m.IsUser {
			return kept
		}
	}
	for i := cut - 1; i >= 0; i-- {
		if msgs[i].IsUser {
			return append([]Message{msgs[i]}, kept[1:]...)
		}
	}
	return kept
}

// stamp fills in ids and timestamps the caller left empty and copies
// metadata so stored messages never alias caller maps.
func stamp(msgs []Message, now time.Time) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = ulid.Make().String()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		m.Metadata = copyMeta(m.Metadata)
		out[i] = m
	}
	return out
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
