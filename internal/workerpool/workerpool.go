// Package workerpool runs bulk build work units on a fixed-size pool with a
// single coarse deadline.
//
// Units must write disjoint state; the pool gives no ordering between them.
// When the deadline passes the whole run fails with ErrTimeout and callers
// discard any partial result.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrTimeout is returned when a run does not finish before its deadline.
var ErrTimeout = errors.New("bulk operation timed out")

// Config sizes a run.
type Config struct {
	// Workers is the pool size. <= 0 means runtime.GOMAXPROCS(0).
	Workers int
	// Timeout bounds the whole run. <= 0 disables the deadline.
	Timeout time.Duration
}

// Range is a half-open index range [Start, End).
type Range struct {
	Start, End int
}

// Len returns End-Start.
func (r Range) Len() int { return r.End - r.Start }

// Split cuts [0,n) into consecutive ranges of at most size elements.
func Split(n, size int) []Range {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	out := make([]Range, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, Range{Start: start, End: min(start+size, n)})
	}
	return out
}

// Run calls fn for every unit in [0,units) on at most cfg.Workers goroutines
// and blocks until all units return, one fails, or the deadline passes.
func Run(ctx context.Context, cfg Config, units int, fn func(ctx context.Context, unit int) error) error {
	if units <= 0 {
		return nil
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, units)

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(workers)

	for u := range units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, u)
		})
	}

	err := g.Wait()
	if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, cfg.Timeout)
	}
	if err == nil {
		err = runCtx.Err()
	}
	return err
}
