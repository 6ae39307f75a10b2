// Package cache provides a content-addressed cache combining LRU storage with
// singleflight to coalesce concurrent loads for the same bytes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Key is the SHA-256 digest of a blob.
type Key [sha256.Size]byte

// KeyOf returns the content key for data.
func KeyOf(data []byte) Key {
	return sha256.Sum256(data)
}

// String returns the hex form of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Stats counts lookups since the cache was created.
type Stats struct {
	Hits   int64
	Misses int64
}

// ContentCache maps blob contents to a value derived from them. Identical bytes
// share one entry regardless of the filename or id they arrived under.
// Concurrent misses for the same bytes run load once; the other callers wait
// for that result and count as hits.
type ContentCache[V any] struct {
	lru    *lru.Cache[Key, V]
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most maxEntries values.
func New[V any](maxEntries int) (*ContentCache[V], error) {
	lruCache, err := lru.New[Key, V](maxEntries)
	if err != nil {
		return nil, err
	}

	return &ContentCache[V]{lru: lruCache}, nil
}

// Get returns the value for data, loading it via load on a miss. The boolean
// reports whether the value came from the cache (or a load shared with another caller).
// Failed loads are not cached.
func (c *ContentCache[V]) Get(ctx context.Context, data []byte, load func(context.Context) (V, error)) (V, bool, error) {
	key := KeyOf(data)
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)

		return v, true, nil
	}

	ran := false

	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		ran = true

		loaded, loadErr := load(ctx)
		if loadErr != nil {
			return zero[V](), loadErr
		}

		c.lru.Add(key, loaded)

		return loaded, nil
	})

	if ran {
		c.misses.Add(1)
	} else {
		c.hits.Add(1)
	}

	if err != nil {
		return zero[V](), false, err
	}

	return val.(V), !ran, nil
}

// Peek returns the cached value for data without loading or touching recency.
func (c *ContentCache[V]) Peek(data []byte) (V, bool) {
	return c.lru.Peek(KeyOf(data))
}

func zero[V any]() (z V) { return z }

// Invalidate removes the entry for data.
func (c *ContentCache[V]) Invalidate(data []byte) {
	c.lru.Remove(KeyOf(data))
}

// Len returns the number of entries in the cache.
func (c *ContentCache[V]) Len() int {
	return c.lru.Len()
}

// Stats returns the hit and miss counters.
func (c *ContentCache[V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
