package cascade

import "sync"

// keyedLocks serializes cascade runs per (account, currency) key. Runs for
// independent keys touch disjoint snapshot rows and may proceed in parallel.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given key, creating it on first use.
// Entries are kept for the process lifetime; the key space is bounded by the
// number of (account, currency) pairs seen.
func (k *keyedLocks) acquire(key string) *sync.Mutex {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock
}
