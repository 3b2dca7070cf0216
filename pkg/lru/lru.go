// Package lru provides a fixed-capacity least-recently-used map.
package lru

import "container/list"

// EvictFunc is called with the entry dropped to make room for a new one.
type EvictFunc[K comparable, V any] func(key K, value V)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is a bounded map that drops its least recently used entry once the
// capacity is exceeded. It is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	capacity int
	ll       *list.List
	items    map[K]*list.Element
	onEvict  EvictFunc[K, V]
}

// New creates a cache holding at most capacity entries. A capacity below 1
// is treated as 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
	}
}

// OnEvict registers a callback for capacity evictions. Explicit Remove calls
// do not trigger it.
func (c *Cache[K, V]) OnEvict(fn EvictFunc[K, V]) {
	c.onEvict = fn
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Peek returns the value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	if el, ok := c.items[key]; ok {
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put inserts or overwrites key. When the insert pushes the cache over
// capacity exactly one entry, the least recently used, is evicted.
func (c *Cache[K, V]) Put(key K, value V) {
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value})
	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes key and reports whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.ll.Remove(el)
	delete(c.items, key)
	return true
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return c.ll.Len()
}

// Capacity returns the configured bound.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// Keys returns the keys ordered from least to most recently used.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, 0, c.ll.Len())
	for el := c.ll.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// RemoveFunc deletes every entry for which match returns true and returns the
// number removed. Recency of the surviving entries is unchanged.
func (c *Cache[K, V]) RemoveFunc(match func(key K, value V) bool) int {
	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry[K, V])
		if match(e.key, e.value) {
			c.ll.Remove(el)
			delete(c.items, e.key)
			removed++
		}
		el = prev
	}
	return removed
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.ll.Init()
	c.items = make(map[K]*list.Element)
}

func (c *Cache[K, V]) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
