package cache

import (
	"hash/maphash"
	"sync"

	"github.com/hupe1980/gtstore/internal/resource"
)

const numShards = 64

// ShardedLRU spreads entries over 64 LRU shards to reduce lock contention.
// Recency is tracked per shard, so eviction order is only approximately LRU.
type ShardedLRU[K comparable, V any] struct {
	shards [numShards]*LRU[K, V]
	seed   maphash.Seed
}

// NewShardedLRU creates a sharded cache. The capacity is divided evenly
// across all shards.
func NewShardedLRU[K comparable, V any](capacity int64, cost func(V) int64, rc *resource.Controller) *ShardedLRU[K, V] {
	shardCapacity := max(capacity/numShards, 1)
	s := &ShardedLRU[K, V]{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRU[K, V](shardCapacity, cost, rc)
	}
	return s
}

// NewShardedBlockCache creates a sharded byte-oriented cache with capacity in bytes.
func NewShardedBlockCache(capacity int64, rc *resource.Controller) *ShardedLRU[Key, []byte] {
	return NewShardedLRU[Key, []byte](capacity, func(b []byte) int64 { return int64(len(b)) }, rc)
}

func (s *ShardedLRU[K, V]) shard(key K) *LRU[K, V] {
	return s.shards[maphash.Comparable(s.seed, key)%numShards]
}

// Get returns a cached value.
func (s *ShardedLRU[K, V]) Get(key K) (V, bool) { return s.shard(key).Get(key) }

// Set caches a value.
func (s *ShardedLRU[K, V]) Set(key K, v V) { s.shard(key).Set(key, v) }

// Invalidate removes entries matching the predicate from every shard.
func (s *ShardedLRU[K, V]) Invalidate(predicate func(key K) bool) int {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
	)
	wg.Add(numShards)
	for i := range numShards {
		go func(shard *LRU[K, V]) {
			defer wg.Done()
			n := shard.Invalidate(predicate)
			mu.Lock()
			removed += n
			mu.Unlock()
		}(s.shards[i])
	}
	wg.Wait()
	return removed
}

// Close purges all shards.
func (s *ShardedLRU[K, V]) Close() error {
	for i := range numShards {
		if err := s.shards[i].Close(); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns aggregated hit/miss statistics.
func (s *ShardedLRU[K, V]) Stats() (hits, misses int64) {
	for i := range numShards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the total cost across all shards.
func (s *ShardedLRU[K, V]) Size() int64 {
	var total int64
	for i := range numShards {
		total += s.shards[i].Size()
	}
	return total
}
