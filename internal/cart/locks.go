package cart

import "sync"

// LockRegistry serializes mutations per cart id. Entries are created lazily
// and reclaimed by refcount: Release deletes the entry only when the last
// holder (or waiter) is gone, so a waiter can never end up blocked on a
// discarded mutex while a fresh caller locks a new one for the same id.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*cartLock
}

type cartLock struct {
	mu   sync.Mutex
	id   string
	refs int
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*cartLock)}
}

// Acquire blocks until the caller holds the exclusive lock for cartID.
// Every Acquire must be paired with exactly one Release.
func (r *LockRegistry) Acquire(cartID string) *cartLock {
	r.mu.Lock()
	l, ok := r.locks[cartID]
	if !ok {
		l = &cartLock{id: cartID}
		r.locks[cartID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return l
}

func (r *LockRegistry) Release(l *cartLock) {
	l.mu.Unlock()

	r.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, l.id)
	}
	r.mu.Unlock()
}

// Len reports the number of live entries. Used by tests to verify reclamation.
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
