package engine

import (
	"sync"
)

// tableLocks serializes work on one table inside the process. Entries are
// reference counted and dropped when unused.
type tableLocks struct {
	mu    sync.Mutex
	locks map[string]*tableLock
}

type tableLock struct {
	mu   sync.Mutex
	refs int
}

func newTableLocks() *tableLocks {
	return &tableLocks{locks: make(map[string]*tableLock)}
}

// Lock blocks until the table is free and returns the unlock function.
func (l *tableLocks) Lock(tenantID, tableNumber string) func() {
	key := tenantID + "\x00" + tableNumber

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &tableLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *tableLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
