// Package keylock provides per-key mutual exclusion. Different keys never
// block each other.
package keylock

import (
	"context"
	"sync"
)

// Locker grants exclusive access per key.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned func releases
	// the lock and must be called exactly once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Map is an in-process Locker. Entries are reference counted and removed
// once no goroutine holds or waits for them.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewMap creates an empty in-process key lock.
func NewMap() *Map {
	return &Map{locks: make(map[string]*entry)}
}

// Lock acquires key.
func (m *Map) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *Map) release(key string, e *entry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// Len returns the number of keys currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

var _ Locker = (*Map)(nil)
