// Package groundtruth remembers token counts the provider actually reported
// for individual messages.
package groundtruth

import (
	"github.com/opencontainers/go-digest"

	"github.com/wycats/SferaDev-sub001/pkg/chat"
	"github.com/wycats/SferaDev-sub001/pkg/lru"
	"github.com/wycats/SferaDev-sub001/pkg/metrics"
)

// DefaultCapacity is the default number of remembered messages.
const DefaultCapacity = 5000

type key struct {
	digest digest.Digest
	family string
}

// Cache maps (message digest, model family) to an actual token count. The
// same content under two families is tracked independently. Entries never
// expire; the LRU bound is the only eviction.
type Cache struct {
	entries *lru.Cache[key, int]
	metrics metrics.Recorder
}

// New creates a Cache holding at most capacity messages.
func New(capacity int, recorder metrics.Recorder) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		entries: lru.New[key, int](capacity),
		metrics: metrics.OrNoop(recorder),
	}
	c.entries.OnEvict(func(key, int) { c.metrics.CacheEviction(metrics.CacheGroundTruth, 1) })
	return c
}

// Get returns the recorded count for msg under family.
func (c *Cache) Get(msg chat.Message, family string) (int, bool) {
	n, ok := c.entries.Get(key{digest: msg.Digest(), family: family})
	c.metrics.CacheLookup(metrics.CacheGroundTruth, ok)
	return n, ok
}

// Put records the actual count for msg under family. Non-positive counts are
// ignored.
func (c *Cache) Put(msg chat.Message, family string, tokens int) {
	if tokens <= 0 {
		return
	}
	c.entries.Put(key{digest: msg.Digest(), family: family}, tokens)
}

// Len returns the number of cached messages.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Clear forgets everything.
func (c *Cache) Clear() {
	c.entries.Clear()
}
