package service

import (
	"sync"

	"github.com/google/uuid"
)

// sessionLocks serializes work per session id. Entries are reference counted
// and dropped once no goroutine holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[uuid.UUID]*sessionLock)}
}

// Lock blocks until id is free and returns the matching unlock func
func (l *sessionLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &sessionLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
