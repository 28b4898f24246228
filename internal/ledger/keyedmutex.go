package ledger

import "sync"

// KeyedMutex serializes operations per key. Locks are created lazily on
// first use and live for the process lifetime; the registry itself is
// guarded by a single coarse mutex so concurrent first acquisitions of the
// same key resolve to one lock.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the key's mutex and returns its release function. Callers
// must defer the release so it runs on every exit path.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
