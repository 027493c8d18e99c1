package orchestrator

import (
	"context"
	"sync"
)

// keyedLock serializes turns per session id. Waiting honors ctx.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*keySlot
}

type keySlot struct {
	ch   chan struct{}
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*keySlot)}
}

// acquire blocks until key is free or ctx is done.
func (k *keyedLock) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	slot, ok := k.locks[key]
	if !ok {
		slot = &keySlot{ch: make(chan struct{}, 1)}
		k.locks[key] = slot
	}
	slot.refs++
	k.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				k.drop(key, slot)
			})
		}, nil
	case <-ctx.Done():
		k.drop(key, slot)
		return nil, ctx.Err()
	}
}

func (k *keyedLock) drop(key string, slot *keySlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *keyedLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
