// Package cache memoizes expensive lookups (cluster and registry
// reads) for a fixed time-to-live. Concurrent lookups of the same key
// share a single computation.
package cache

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache holds computed values for ttl. Entries are never evicted,
// only replaced once they have expired.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mtx     sync.RWMutex
	entries map[string]item
	// Bumped by Forget, so computations started before it don't
	// store their result.
	gens map[string]uint64

	flight singleflight.Group
}

type item struct {
	val interface{}
	ts  time.Time
}

type Option func(*Cache)

// WithClock substitutes the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]item{},
		gens:    map[string]uint64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate returns the value stored under key if it was computed less
// than ttl ago. Otherwise it calls supplier, stores the result and
// returns it. A failed supplier leaves nothing behind, so the next
// call tries again.
func (c *Cache) Calculate(key string, supplier func() (interface{}, error)) (interface{}, error) {
	if val, ok := c.fresh(key); ok {
		return val, nil
	}
	c.mtx.RLock()
	gen := c.gens[key]
	c.mtx.RUnlock()
	val, err, _ := c.flight.Do(key+"@"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		// Someone may have finished the same computation just before
		// we got here.
		if val, ok := c.fresh(key); ok {
			return val, nil
		}
		val, err := supplier()
		if err != nil {
			return nil, err
		}
		c.mtx.Lock()
		if c.gens[key] == gen {
			c.entries[key] = item{val: val, ts: c.now()}
		}
		c.mtx.Unlock()
		return val, nil
	})
	return val, err
}

// Forget drops whatever is stored under key, along with the result of
// any computation of it already under way.
func (c *Cache) Forget(key string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.entries, key)
	c.gens[key]++
}

func (c *Cache) fresh(key string) (interface{}, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	it, ok := c.entries[key]
	if !ok || c.now().Sub(it.ts) >= c.ttl {
		return nil, false
	}
	return it.val, true
}
