package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/gtstore/internal/resource"
)

// LRU is a strict least-recently-used cache. Every entry has a cost; the sum
// of costs never exceeds the capacity after a Set returns.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	cost      func(V) int64
	items     map[K]*list.Element
	evictList *list.List
	rc        *resource.Controller
	onEvict   func(K, V)

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[K comparable, V any] struct {
	key   K
	value V
	cost  int64
}

// NewLRU creates an LRU holding at most capacity units of cost. A nil cost
// function charges one unit per entry. If rc is provided, entry costs are
// charged against its memory budget.
func NewLRU[K comparable, V any](capacity int64, cost func(V) int64, rc *resource.Controller) *LRU[K, V] {
	if cost == nil {
		cost = func(V) int64 { return 1 }
	}
	return &LRU[K, V]{
		capacity:  capacity,
		cost:      cost,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// NewLRUBlockCache creates a byte-oriented LRU with capacity in bytes.
func NewLRUBlockCache(capacity int64, rc *resource.Controller) *LRU[Key, []byte] {
	return NewLRU[Key, []byte](capacity, func(b []byte) int64 { return int64(len(b)) }, rc)
}

// OnEvict registers fn to run, under the cache lock, for every entry that
// leaves the cache by eviction or invalidation.
func (c *LRU[K, V]) OnEvict(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// Get returns a cached value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[K, V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Contains reports whether key is cached without touching recency or stats.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Set caches a value.
func (c *LRU[K, V]) Set(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newCost := c.cost(v)

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[K, V])
		if c.rc != nil && newCost > e.cost {
			// If the controller denies the growth, keep the old value.
			if !c.rc.TryAcquireMemory(newCost - e.cost) {
				return
			}
		}
		c.size += newCost - e.cost
		if c.rc != nil && newCost < e.cost {
			c.rc.ReleaseMemory(e.cost - newCost)
		}
		e.value, e.cost = v, newCost
		c.evict()
		return
	}

	// Larger than the whole cache: don't cache.
	if newCost > c.capacity {
		return
	}

	// Evict locally first so the controller gets memory back before we ask.
	for c.size+newCost > c.capacity {
		ent := c.evictList.Back()
		if ent == nil {
			break
		}
		c.removeElement(ent)
	}

	if c.rc != nil && !c.rc.TryAcquireMemory(newCost) {
		return
	}

	element := c.evictList.PushFront(&entry[K, V]{key: key, value: v, cost: newCost})
	c.items[key] = element
	c.size += newCost
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. The loader runs without the cache lock held; concurrent misses on
// the same key may load twice. loaded reports a miss.
func (c *LRU[K, V]) GetOrLoad(ctx context.Context, key K, load func(ctx context.Context) (V, error)) (v V, loaded bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, false, nil
	}
	v, err = load(ctx)
	if err != nil {
		var zero V
		return zero, true, err
	}
	c.Set(key, v)
	return v, true, nil
}

// Invalidate removes entries matching the predicate and returns how many.
func (c *LRU[K, V]) Invalidate(predicate func(key K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	// removeElement edits the list, so collect first.
	var toRemove []*list.Element
	for key, element := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, element)
		}
	}
	for _, e := range toRemove {
		c.removeElement(e)
	}
	return len(toRemove)
}

// Purge removes every entry.
func (c *LRU[K, V]) Purge() {
	c.Invalidate(func(K) bool { return true })
}

func (c *LRU[K, V]) evict() {
	for c.size > c.capacity {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		c.removeElement(element)
	}
}

func (c *LRU[K, V]) Close() error {
	c.Purge()
	return nil
}

func (c *LRU[K, V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU[K, V]) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry[K, V])
	delete(c.items, kv.key)
	c.size -= kv.cost
	if c.rc != nil {
		c.rc.ReleaseMemory(kv.cost)
	}
	if c.onEvict != nil {
		c.onEvict(kv.key, kv.value)
	}
}

// Size returns the summed cost of the cached entries.
func (c *LRU[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the configured capacity.
func (c *LRU[K, V]) Capacity() int64 { return c.capacity }
