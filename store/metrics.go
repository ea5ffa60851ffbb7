package store

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/gtstore/internal/cache"
)

// MetricsObserver receives cache, prefetch and rebuild events.
type MetricsObserver interface {
	// OnCacheAccess is called for every block lookup.
	OnCacheAccess(kind string, hit bool)
	// OnPrefetch is called when a prefetch is scheduled, dropped because the
	// executor is saturated, or fails.
	OnPrefetch(event PrefetchEvent)
	// OnRebuild is called when a rebuild completes.
	OnRebuild(duration time.Duration, blocks int, err error)
}

// PrefetchEvent classifies OnPrefetch calls.
type PrefetchEvent uint8

const (
	PrefetchScheduled PrefetchEvent = iota
	PrefetchDropped
	PrefetchFailed
)

func (e PrefetchEvent) String() string {
	switch e {
	case PrefetchScheduled:
		return "scheduled"
	case PrefetchDropped:
		return "dropped"
	case PrefetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NoopMetricsObserver discards every event.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnCacheAccess(string, bool)          {}
func (NoopMetricsObserver) OnPrefetch(PrefetchEvent)            {}
func (NoopMetricsObserver) OnRebuild(time.Duration, int, error) {}

// BasicMetricsObserver counts events in memory.
type BasicMetricsObserver struct {
	GenotypeHits      atomic.Int64
	GenotypeMisses    atomic.Int64
	AnnotationHits    atomic.Int64
	AnnotationMisses  atomic.Int64
	PrefetchScheduled atomic.Int64
	PrefetchDropped   atomic.Int64
	PrefetchFailed    atomic.Int64
	Rebuilds          atomic.Int64
	RebuildErrors     atomic.Int64
	RebuildNanos      atomic.Int64
}

func (b *BasicMetricsObserver) OnCacheAccess(kind string, hit bool) {
	switch {
	case kind == cache.KindAnnotation.String() && hit:
		b.AnnotationHits.Add(1)
	case kind == cache.KindAnnotation.String():
		b.AnnotationMisses.Add(1)
	case hit:
		b.GenotypeHits.Add(1)
	default:
		b.GenotypeMisses.Add(1)
	}
}

func (b *BasicMetricsObserver) OnPrefetch(event PrefetchEvent) {
	switch event {
	case PrefetchScheduled:
		b.PrefetchScheduled.Add(1)
	case PrefetchDropped:
		b.PrefetchDropped.Add(1)
	case PrefetchFailed:
		b.PrefetchFailed.Add(1)
	}
}

func (b *BasicMetricsObserver) OnRebuild(duration time.Duration, _ int, err error) {
	b.Rebuilds.Add(1)
	b.RebuildNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}
