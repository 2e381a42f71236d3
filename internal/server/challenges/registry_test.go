package challenges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetClear(t *testing.T) {
	r := New()

	_, ok := r.Get("+1")
	assert.False(t, ok)

	r.Put("+1", "h1")
	r.Put("+1", "h2")

	p, ok := r.Get("+1")
	require.True(t, ok)
	assert.Equal(t, "h2", p.Hash)
	assert.Equal(t, 1, r.Len())

	r.Clear("+1")
	_, ok = r.Get("+1")
	assert.False(t, ok)
}

func TestExpired(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := New()

	r.now = func() time.Time { return base }
	r.Put("+old", "a")
	r.now = func() time.Time { return base.Add(10 * time.Minute) }
	r.Put("+new", "b")

	got := r.Expired(base.Add(20*time.Minute), 15*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, "+old", got[0].Key)

	_, ok := r.Get("+old")
	assert.False(t, ok)
	_, ok = r.Get("+new")
	assert.True(t, ok)
}

func TestRequeue(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r := New()
	r.now = func() time.Time { return base }
	r.Put("+a", "a1")
	r.Put("+b", "b1")

	got := r.Expired(base.Add(time.Hour), 15*time.Minute)
	require.Len(t, got, 2)
	assert.Zero(t, r.Len())

	for _, p := range got {
		if p.Key == "+b" {
			r.now = func() time.Time { return base.Add(time.Hour) }
			r.Put("+b", "b2")
		}
		r.Requeue(p)
	}

	a, ok := r.Get("+a")
	require.True(t, ok)
	assert.Equal(t, base, a.IssuedAt, "requeued challenge keeps its age")

	b, ok := r.Get("+b")
	require.True(t, ok)
	assert.Equal(t, "b2", b.Hash, "newer challenge wins")

	again := r.Expired(base.Add(time.Hour), 15*time.Minute)
	require.Len(t, again, 1)
	assert.Equal(t, "+a", again[0].Key)
}
