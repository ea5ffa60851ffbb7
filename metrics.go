package gtstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics of
// the facade. Implement it to feed a monitoring system; block-cache events
// are reported separately through store.MetricsObserver.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    rebuildHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordRebuild(duration time.Duration, err error) {
//	    p.rebuildHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordBuild is called after each bit-matrix build.
	RecordBuild(taxa, sites int, duration time.Duration, err error)

	// RecordMutation is called after each taxon add, rename or removal.
	// op is "add", "rename" or "remove".
	RecordMutation(op string, duration time.Duration, err error)

	// RecordRebuild is called after each store rebuild.
	RecordRebuild(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordMutation(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordRebuild(time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	BuildCount        atomic.Int64
	BuildErrors       atomic.Int64
	BuildTotalNanos   atomic.Int64
	BuildCells        atomic.Int64
	AddCount          atomic.Int64
	RenameCount       atomic.Int64
	RemoveCount       atomic.Int64
	MutationErrors    atomic.Int64
	RebuildCount      atomic.Int64
	RebuildErrors     atomic.Int64
	RebuildTotalNanos atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(taxa, sites int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildCells.Add(int64(taxa) * int64(sites))
}

// RecordMutation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMutation(op string, duration time.Duration, err error) {
	if err != nil {
		b.MutationErrors.Add(1)
		return
	}
	switch op {
	case "add":
		b.AddCount.Add(1)
	case "rename":
		b.RenameCount.Add(1)
	case "remove":
		b.RemoveCount.Add(1)
	}
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(duration time.Duration, err error) {
	b.RebuildCount.Add(1)
	b.RebuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildAvgNanos:   avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		BuildCells:      b.BuildCells.Load(),
		Mutations:       b.AddCount.Load() + b.RenameCount.Load() + b.RemoveCount.Load(),
		MutationErrors:  b.MutationErrors.Load(),
		RebuildCount:    b.RebuildCount.Load(),
		RebuildErrors:   b.RebuildErrors.Load(),
		RebuildAvgNanos: avg(b.RebuildTotalNanos.Load(), b.RebuildCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	BuildAvgNanos   int64
	BuildCells      int64
	Mutations       int64
	MutationErrors  int64
	RebuildCount    int64
	RebuildErrors   int64
	RebuildAvgNanos int64
}
