// Package challenges remembers the verification challenges issued per session
// until they are consumed or expire.
package challenges

import (
	"sync"
	"time"
)

// Pending is a challenge handle issued for a material key.
type Pending struct {
	Key      string
	Hash     string
	IssuedAt time.Time
}

type Registry struct {
	mu    sync.Mutex
	items map[string]Pending
	now   func() time.Time
}

func New() *Registry {
	return &Registry{items: make(map[string]Pending), now: time.Now}
}

// Put records a fresh challenge for key, replacing any earlier one.
func (r *Registry) Put(key, hash string) Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := Pending{Key: key, Hash: hash, IssuedAt: r.now()}
	r.items[key] = p
	return p
}

func (r *Registry) Get(key string) (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[key]
	return p, ok
}

// Clear drops the challenge for key.
func (r *Registry) Clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, key)
}

// Expired removes and returns every challenge issued before now-ttl.
func (r *Registry) Expired(now time.Time, ttl time.Duration) []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-ttl)
	var out []Pending
	for key, p := range r.items {
		if p.IssuedAt.Before(cutoff) {
			out = append(out, p)
			delete(r.items, key)
		}
	}
	return out
}

// Requeue puts back a challenge taken by Expired, keeping its IssuedAt. A
// challenge issued for the key in the meantime is left in place.
func (r *Registry) Requeue(p Pending) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.items[p.Key]; ok && !cur.IssuedAt.Before(p.IssuedAt) {
		return
	}
	r.items[p.Key] = p
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
