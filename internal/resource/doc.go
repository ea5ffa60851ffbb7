// Package resource implements the Controller that budgets memory, background
// tasks and bulk I/O for one store.
//
//   - Memory: track and limit bytes held by the block caches
//   - Background: cap concurrently running prefetch tasks
//   - IO: rate-limit bulk scans so they do not starve foreground reads
//
// # Memory
//
// A weighted semaphore enforces the hard limit and an atomic counter tracks
// usage. Caches use the non-blocking form and skip admission when the budget
// is spent:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//	if !rc.TryAcquireMemory(int64(len(block))) {
//	    return // do not cache
//	}
//	defer rc.ReleaseMemory(int64(len(block)))
//
// # Background tasks
//
// TryGo starts a task only when a slot is free, so a burst of cache misses
// cannot spawn an unbounded number of prefetch goroutines. Wait drains the
// running tasks on shutdown:
//
//	if !rc.TryGo(func() { prefetch(next) }) {
//	    // dropped: all slots busy
//	}
//	...
//	rc.Wait()
//
// # IO rate limiting
//
// A token bucket in bytes per second:
//
//	if err := rc.AcquireIO(ctx, len(block)); err != nil {
//	    return err
//	}
//
// All Controller methods are safe for concurrent use and no-ops on a nil
// Controller.
package resource
