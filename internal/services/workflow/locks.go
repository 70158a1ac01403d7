package workflow

import "sync"

// keyedLocks serializes read-modify-write cycles per persisted scope key
// (monthly doc per run, daily doc per run, close doc per month). Different
// keys proceed independently. Entries are never evicted; the key space is
// bounded by the number of runs plus calendar months, a few per day.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks key and returns the unlock function.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
