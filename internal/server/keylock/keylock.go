// Package keylock serializes work per string key. Different keys never
// contend; waiting on a busy key is bounded by the caller's context.
package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Registry hands out exclusive per-key locks. Idle keys are dropped, so the
// registry only holds entries for keys that are locked or being waited on.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Lock blocks until the key is free or ctx is done. On success the returned
// unlock must be called exactly once; extra calls are no-ops.
func (r *Registry) Lock(ctx context.Context, key string) (func(), error) {
	e := r.acquire(key)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		r.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			r.release(key, e)
		})
	}, nil
}

// TryLock takes the key only if it is free right now.
func (r *Registry) TryLock(key string) (func(), bool) {
	e := r.acquire(key)

	if !e.sem.TryAcquire(1) {
		r.release(key, e)
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			r.release(key, e)
		})
	}, true
}

// Len reports how many keys are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) acquire(key string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		r.entries[key] = e
	}
	e.refs++
	return e
}

func (r *Registry) release(key string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(r.entries, key)
	}
}
