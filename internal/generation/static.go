package generation

import (
	"context"
	"sync/atomic"
)

// Static replays fixed replies in order, wrapping around. It backs test mode
// and offline runs.
type Static struct {
	replies []string
	next    atomic.Uint64
}

// DefaultStaticReply is a well formed response used when no replies are given.
const DefaultStaticReply = "A feeling often points to something you value. What might this feeling be pointing toward?"

func NewStatic(replies ...string) *Static {
	if len(replies) == 0 {
		replies = []string{DefaultStaticReply}
	}
	return &Static{replies: replies}
}

func (s *Static) Complete(ctx context.Context, _ string, _ float64, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := s.next.Add(1) - 1
	return s.replies[i%uint64(len(s.replies))], nil
}
