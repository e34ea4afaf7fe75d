package inventory

import (
	"context"
	"sync"
)

// LocalLocker is an in-process lock arena: one single-slot semaphore per key,
// created on first use and dropped when no caller holds or waits on it.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates an empty arena.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

// Lock waits for key until ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	slot := l.acquireSlot(key)

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			l.releaseSlot(key, slot)
		})
	}, nil
}

func (l *LocalLocker) acquireSlot(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalLocker) releaseSlot(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// size is the number of live slots.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
