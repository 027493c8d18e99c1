// Package session stores conversation history keyed by session id. The
// reflection pipeline treats it as an append log: it reads recent messages
// for continuity and appends each finished turn as one unit.
package session

import (
	"context"
	"errors"
	"time"
)

// #region types

// Message is one utterance in a session.
type Message struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	IsUser    bool              `json:"is_user"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Session is a conversation and its retained messages, oldest first.
type Session struct {
	ID           string    `json:"id"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// #endregion types

// #region store

// Store is the session collaborator.
type Store interface {
	Create(ctx context.Context) (string, error)
	// Ensure creates the session under id if it does not exist yet.
	Ensure(ctx context.Context, id string) error
	// Append adds msgs in order as one unit: either all are stored or none.
	Append(ctx context.Context, id string, msgs ...Message) error
	Get(ctx context.Context, id string) (Session, error)
	Clear(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// ListActive returns ids of sessions not idle past the timeout, most recent first.
	ListActive(ctx context.Context) ([]string, error)
	// ExpireIdle deletes sessions idle past the timeout and returns how many went.
	ExpireIdle(ctx context.Context, now time.Time) (int, error)
}

// #endregion store

// #region options

// Options bound session growth and lifetime.
type Options struct {
	MaxMessages int           // cap on retained messages; <= 0 keeps everything
	IdleTimeout time.Duration // inactivity window; <= 0 never expires
	Now         func() time.Time
}

// DefaultOptions mirrors the production settings: 20 messages, 30 minutes.
func DefaultOptions() Options {
	return Options{MaxMessages: 20, IdleTimeout: 30 * time.Minute}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o Options) idle(last, now time.Time) bool {
	return o.IdleTimeout > 0 && now.Sub(last) > o.IdleTimeout
}

// #endregion options
