package engine

import "sync"

// keyMutex serializes work per (portfolio, symbol) key. Locks for
// different keys never contend; idle entries are dropped so the map
// does not grow with the symbol universe.
type keyMutex struct {
	mu    sync.Mutex
	locks map[tradeKey]*keyLock
}

type tradeKey struct {
	portfolioID string
	symbol      string
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[tradeKey]*keyLock)}
}

func (k *keyMutex) lock(key tradeKey) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
