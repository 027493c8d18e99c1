package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// #region memory-store

// MemoryStore keeps sessions in process. Each session has its own mutex so
// appends to one session never wait on another.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memEntry
	opts     Options
}

type memEntry struct {
	mu sync.Mutex
	s  Session
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memEntry), opts: opts}
}

// #endregion memory-store

// #region lifecycle

// Create starts a new session with a random id.
func (m *MemoryStore) Create(ctx context.Context) (string, error) {
	id := uuid.New().String()
	return id, m.Ensure(ctx, id)
}

// Ensure creates the session if absent.
func (m *MemoryStore) Ensure(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return nil
	}
	now := m.opts.now()
	m.sessions[id] = &memEntry{s: Session{ID: id, CreatedAt: now, LastActivity: now}}
	return nil
}

// Delete removes the session. Deleting an unknown id returns ErrNotFound.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) entry(id string) (*memEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// #endregion lifecycle

// #region messages

// Append adds msgs as one unit and trims to the cap.
func (m *MemoryStore) Append(ctx context.Context, id string, msgs ...Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	now := m.opts.now()
	stamped := stamp(msgs, now)

	e.mu.Lock()
	defer e.mu.Unlock()
	next := make([]Message, 0, len(e.s.Messages)+len(stamped))
	next = append(next, e.s.Messages...)
	next = append(next, stamped...)
	e.s.Messages = trim(next, m.opts.MaxMessages)
	e.s.LastActivity = now
	return nil
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	e, err := m.entry(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.s
	out.Messages = make([]Message, len(e.s.Messages))
	for i, msg := range e.s.Messages {
		msg.Metadata = copyMeta(msg.Metadata)
		out.Messages[i] = msg
	}
	return out, nil
}

// Clear drops all messages but keeps the session.
func (m *MemoryStore) Clear(_ context.Context, id string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Messages = nil
	e.s.LastActivity = m.opts.now()
	return nil
}

// #endregion messages

// #region expiry

// ListActive returns sessions inside the idle window, most recent first.
func (m *MemoryStore) ListActive(_ context.Context) ([]string, error) {
	now := m.opts.now()
	type item struct {
		id   string
		last time.Time
	}
	var items []item
	m.mu.RLock()
	for id, e := range m.sessions {
		e.mu.Lock()
		last := e.s.LastActivity
		e.mu.Unlock()
		if !m.opts.idle(last, now) {
			items = append(items, item{id, last})
		}
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].last.Equal(items[j].last) {
			return items[i].id < items[j].id
		}
		return items[i].last.After(items[j].last)
	})
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// ExpireIdle removes sessions idle past the timeout.
func (m *MemoryStore) ExpireIdle(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		e.mu.Lock()
		idle := m.opts.idle(e.s.LastActivity, now)
		e.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// #endregion expiry
