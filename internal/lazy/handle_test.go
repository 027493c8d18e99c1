package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type conn struct{ closed atomic.Bool }

func (c *conn) Close() error {
	c.closed.Store(true)
	return nil
}

func TestConcurrentFirstUseBuildsOnce(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	h := New(func(ctx context.Context) (*conn, error) {
		builds.Add(1)
		<-release
		return &conn{}, nil
	})

	var wg sync.WaitGroup
	results := make([]*conn, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := h.Get(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.True(t, h.Ready())
}

func TestFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	h := New(func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("backend down")
		}
		return 42, nil
	})
	_, err := h.Get(context.Background())
	require.Error(t, err)
	assert.False(t, h.Ready())

	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGetHonorsCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	h := New(func(ctx context.Context) (int, error) {
		<-release
		return 7, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCloseClosesValue(t *testing.T) {
	c := &conn{}
	h := Of(c)
	require.NoError(t, h.Close())
	assert.True(t, c.closed.Load())
	assert.False(t, h.Ready())
	require.NoError(t, h.Close())
}
