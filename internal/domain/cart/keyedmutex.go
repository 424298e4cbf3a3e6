package cart

import "sync"

// keyedMutex serializes operations per string key. Mutations against the same
// cart identity queue behind each other instead of racing last-write-wins;
// different identities proceed in parallel. Entries are reference counted and
// removed when the last holder unlocks, so the map does not grow with the
// number of identities ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key, creating it on first use.
func (km *keyedMutex) Lock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &lockEntry{}
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key and drops the entry once no goroutine
// holds or waits on it.
func (km *keyedMutex) Unlock(key string) {
	km.mu.Lock()
	e := km.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	e.mu.Unlock()
}
