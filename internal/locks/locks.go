// Package locks provides the per-item exclusive locks that serialize every
// state-mutating auction operation. Bid resolution, buy-now, rejection
// recompute and the closer all take the item's lock for their whole
// read-modify-write sequence; unrelated items stay fully concurrent. A holder
// never acquires a second key, so lock ordering cannot deadlock.
package locks

import "sync"

type itemLock struct {
	mu   sync.Mutex
	refs int
}

// Registry hands out exclusive locks keyed by item id. Entries are reference
// counted and removed once the last waiter releases, so the map does not grow
// with the catalog.
type Registry struct {
	mu    sync.Mutex
	items map[string]*itemLock
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*itemLock)}
}

// Lock blocks until the key's exclusive lock is held and returns the release
// function. Release exactly once.
func (r *Registry) Lock(key string) func() {
	r.mu.Lock()
	l, exists := r.items[key]
	if !exists {
		l = &itemLock{}
		r.items[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.items, key)
		}
		r.mu.Unlock()
	}
}
