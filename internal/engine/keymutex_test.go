package engine

import (
	"sync"
	"testing"
)

func TestKeyMutexSerializesSameKey(t *testing.T) {
	k := newKeyMutex()
	key := tradeKey{"p1", "AAPL"}

	counter := 0
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock(key)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
}

func TestKeyMutexDropsIdleEntries(t *testing.T) {
	k := newKeyMutex()

	unlock := k.lock(tradeKey{"p1", "AAPL"})
	unlock()
	unlock = k.lock(tradeKey{"p2", "MSFT"})
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Fatalf("idle locks must be dropped, have %d", len(k.locks))
	}
}
