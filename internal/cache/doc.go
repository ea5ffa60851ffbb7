// Package cache provides the block caches behind the mutable genotype store
// and the caching blob store.
//
// [LRU] is a strict least-recently-used cache with per-entry cost. With
// capacity 2 and unit cost, accesses B1 B2 B3 B1 evict B1 on B3 and reload it
// on the final access. [LRU.GetOrLoad] runs a loader on miss. Entry costs can
// be charged against a resource.Controller memory budget.
//
// [ShardedLRU] splits the key space over 64 LRUs for concurrent readers. It is
// only approximately LRU across shards and is used where strict order does not
// matter, such as blob byte ranges.
//
// [DiskBlockCache] keeps blocks as local files and [Tiered] chains it behind a
// memory cache for remote backends.
//
// Keys carry a [Kind] and a Namespace so that every block of one taxon (or one
// blob) can be dropped at once with [InNamespace].
package cache
