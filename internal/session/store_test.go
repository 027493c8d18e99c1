package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// forEachStore runs fn against both implementations with the same options.
func forEachStore(t *testing.T, opts Options, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(opts))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:", opts)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func userMsg(text string) Message  { return Message{Text: text, IsUser: true} }
func agentMsg(text string) Message { return Message{Text: text} }

func TestCreateAppendGet(t *testing.T) {
	forEachStore(t, DefaultOptions(), func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Create(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		require.NoError(t, s.Append(ctx, id, userMsg("hello"), Message{Text: "reply", Metadata: map[string]string{"strategy": "grounded"}}))
		sess, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Len(t, sess.Messages, 2)
		assert.Equal(t, "hello", sess.Messages[0].Text)
		assert.True(t, sess.Messages[0].IsUser)
		assert.Equal(t, "reply", sess.Messages[1].Text)
		assert.Equal(t, "grounded", sess.Messages[1].Metadata["strategy"])
		assert.NotEmpty(t, sess.Messages[0].ID)
		assert.NotEqual(t, sess.Messages[0].ID, sess.Messages[1].ID)
	})
}

func TestUnknownSession(t *testing.T) {
	forEachStore(t, DefaultOptions(), func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Append(ctx, "missing", userMsg("x")), ErrNotFound)
		assert.ErrorIs(t, s.Clear(ctx, "missing"), ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	})
}

func TestEnsureIsIdempotent(t *testing.T) {
	forEachStore(t, DefaultOptions(), func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Ensure(ctx, "chosen-id"))
		require.NoError(t, s.Append(ctx, "chosen-id", userMsg("one")))
		require.NoError(t, s.Ensure(ctx, "chosen-id"))
		sess, err := s.Get(ctx, "chosen-id")
		require.NoError(t, err)
		assert.Len(t, sess.Messages, 1)
	})
}

func TestCapKeepsLatestUserMessage(t *testing.T) {
	opts := Options{MaxMessages: 20}
	forEachStore(t, opts, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Create(ctx)
		require.NoError(t, err)
		for i := 0; i < 25; i++ {
			m := agentMsg(fmt.Sprintf("m%d", i))
			if i%2 == 0 {
				m = userMsg(fmt.Sprintf("m%d", i))
			}
			require.NoError(t, s.Append(ctx, id, m))
		}
		require.NoError(t, s.Append(ctx, id, userMsg("latest"), agentMsg("answer")))

		sess, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Len(t, sess.Messages, 20)
		assert.Equal(t, "latest", sess.Messages[18].Text)
		assert.Equal(t, "answer", sess.Messages[19].Text)
		assert.Equal(t, "m7", sess.Messages[0].Text)
	})
}

func TestTrimRetainsAUserMessage(t *testing.T) {
	msgs := []Message{userMsg("u1"), agentMsg("a1"), userMsg("u2"), agentMsg("a2"), agentMsg("a3"), agentMsg("a4")}
	got := trim(msgs, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "u2", got[0].Text)
	assert.Equal(t, "a3", got[1].Text)
	assert.Equal(t, "a4", got[2].Text)

	assert.Equal(t, msgs, trim(msgs, 0))
	assert.Equal(t, msgs, trim(msgs, 10))
	allAgent := []Message{agentMsg("a"), agentMsg("b"), agentMsg("c")}
	assert.Equal(t, allAgent[1:], trim(allAgent, 2))
}

func TestCapRetainsUserAcrossStores(t *testing.T) {
	forEachStore(t, Options{MaxMessages: 1}, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, id, userMsg("question"), agentMsg("reflection")))
		sess, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Len(t, sess.Messages, 1)
		assert.Equal(t, "question", sess.Messages[0].Text)
	})
}

func TestClearAndDelete(t *testing.T) {
	forEachStore(t, DefaultOptions(), func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, s.Append(ctx, id, userMsg("x")))
		require.NoError(t, s.Clear(ctx, id))
		sess, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, sess.Messages)

		require.NoError(t, s.Delete(ctx, id))
		_, err = s.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestIdleExpiry(t *testing.T) {
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts := Options{MaxMessages: 20, IdleTimeout: 30 * time.Minute, Now: c.Now}
	forEachStore(t, opts, func(t *testing.T, s Store) {
		ctx := context.Background()
		old, err := s.Create(ctx)
		require.NoError(t, err)
		c.advance(20 * time.Minute)
		fresh, err := s.Create(ctx)
		require.NoError(t, err)
		c.advance(15 * time.Minute)

		active, err := s.ListActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{fresh}, active)

		n, err := s.ExpireIdle(ctx, c.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = s.Get(ctx, old)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, fresh)
		assert.NoError(t, err)
	})
}

func TestConcurrentAppendsKeepPairsTogether(t *testing.T) {
	forEachStore(t, Options{}, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Create(ctx)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Append(ctx, id, userMsg(fmt.Sprintf("u%d", i)), agentMsg(fmt.Sprintf("a%d", i))))
			}(i)
		}
		wg.Wait()

		sess, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Len(t, sess.Messages, 40)
		for i := 0; i < 40; i += 2 {
			u, a := sess.Messages[i], sess.Messages[i+1]
			require.True(t, u.IsUser)
			require.False(t, a.IsUser)
			assert.Equal(t, "a"+u.Text[1:], a.Text)
		}
	})
}

func TestAppendHonorsCancelledContext(t *testing.T) {
	forEachStore(t, DefaultOptions(), func(t *testing.T, s Store) {
		id, err := s.Create(context.Background())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, s.Append(ctx, id, userMsg("x"), agentMsg("y")))
		sess, err := s.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, sess.Messages)
	})
}

func TestSummarizeAndExport(t *testing.T) {
	s := Session{ID: "s1", Messages: []Message{userMsg("a"), agentMsg("b"), userMsg("c")}}
	sum := Summarize(s)
	assert.Equal(t, 3, sum.TotalMessages)
	assert.Equal(t, 2, sum.UserMessages)
	assert.Equal(t, 1, sum.AgentMessages)

	b, err := Export(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id": "s1"`)
	assert.Contains(t, string(b), `"is_user": true`)
}
