// Package lazy provides an explicitly owned, lazily constructed client handle.
package lazy

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Handle constructs a value on first use. Concurrent first callers share a
// single construction; a failed construction is not cached, so the next
// call tries again.
type Handle[T any] struct {
	init  func(ctx context.Context) (T, error)
	mu    sync.RWMutex
	value T
	ready bool
	group singleflight.Group
}

// New returns a Handle that builds its value with init.
func New[T any](init func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{init: init}
}

// Of returns a Handle already holding v.
func Of[T any](v T) *Handle[T] {
	return &Handle[T]{value: v, ready: true}
}

// Get returns the value, constructing it if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.RLock()
	if h.ready {
		v := h.value
		h.mu.RUnlock()
		return v, nil
	}
	h.mu.RUnlock()

	ch := h.group.DoChan("init", func() (any, error) {
		h.mu.RLock()
		if h.ready {
			v := h.value
			h.mu.RUnlock()
			return v, nil
		}
		h.mu.RUnlock()

		// construction outlives any single caller's cancellation
		v, err := h.init(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		h.mu.Lock()
		h.value, h.ready = v, true
		h.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, fmt.Errorf("lazy init: %w", res.Err)
		}
		return res.Val.(T), nil
	}
}

// Ready reports whether the value has been constructed.
func (h *Handle[T]) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Close closes the value if it was constructed and implements io.Closer.
func (h *Handle[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return nil
	}
	h.ready = false
	if c, ok := any(h.value).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
