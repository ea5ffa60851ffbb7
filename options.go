package gtstore

import (
	"time"

	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"
	"github.com/hupe1980/gtstore/store"
)

// DefaultRemoteCacheBytes is the in-memory byte-range cache of a Remote
// backend.
const DefaultRemoteCacheBytes = 256 << 20

type options struct {
	logger  *Logger
	metrics MetricsCollector

	cfg matrix.Config

	storeOpts        []store.Option
	cacheDir         string
	cacheDirBytes    int64
	remoteCacheBytes int64
}

// Option configures builds and mutable stores.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{
		cfg:              matrix.DefaultConfig(),
		remoteCacheBytes: DefaultRemoteCacheBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	o.cfg.Logger = o.logger.Logger
	return o
}

// storeOptions translates the shared settings into store options. Explicit
// WithStoreOptions come last and win.
func (o options) storeOptions() []store.Option {
	opts := []store.Option{
		store.WithLogger(o.logger.Logger),
		store.WithMaxNumAlleles(o.cfg.MaxNumAlleles),
		store.WithRetainRare(o.cfg.RetainRare),
		store.WithRebuildTimeout(o.cfg.BuildTimeout),
	}
	if o.cfg.Workers > 0 {
		opts = append(opts, store.WithWorkers(o.cfg.Workers))
	}
	if o.cfg.Codec != nil {
		opts = append(opts, store.WithAlleleCodec(o.cfg.Codec))
	}
	return append(opts, o.storeOpts...)
}

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsCollector sets the facade metrics collector.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMaxNumAlleles sets how many alleles per site are retained (1..14).
func WithMaxNumAlleles(n int) Option {
	return func(o *options) {
		o.cfg.MaxNumAlleles = n
	}
}

// WithRetainRare keeps alleles beyond the retained ones in a shared rare slot.
func WithRetainRare(retain bool) Option {
	return func(o *options) {
		o.cfg.RetainRare = retain
	}
}

// WithLayout selects which axes a built BitMatrix indexes.
func WithLayout(l matrix.Layout) Option {
	return func(o *options) {
		o.cfg.Layout = l
	}
}

// WithWorkers sets the worker-pool size of builds and rebuilds.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.cfg.Workers = n
	}
}

// WithBuildTimeout bounds builds and rebuilds.
func WithBuildTimeout(d time.Duration) Option {
	return func(o *options) {
		o.cfg.BuildTimeout = d
	}
}

// WithCodec sets the allele codec used to render and parse calls.
func WithCodec(c genotype.AlleleCodec) Option {
	return func(o *options) {
		o.cfg.Codec = c
	}
}

// WithStoreOptions passes options through to the mutable store.
//
// Example:
//
//	gtstore.CreateMutableStore(ctx, gtstore.Local(dir), sites,
//	    gtstore.WithStoreOptions(
//	        store.WithWorkingSet(32),
//	        store.WithLookAhead(4),
//	        store.WithCompression(store.CompressionLZ4),
//	    ))
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithCacheDir adds an on-disk second tier below the in-memory cache of a
// Remote backend. Cached ranges survive restarts. maxBytes bounds the
// directory size.
func WithCacheDir(dir string, maxBytes int64) Option {
	return func(o *options) {
		o.cacheDir = dir
		o.cacheDirBytes = maxBytes
	}
}

// WithRemoteCacheSize sets the in-memory byte-range cache of a Remote backend.
func WithRemoteCacheSize(bytes int64) Option {
	return func(o *options) {
		o.remoteCacheBytes = bytes
	}
}
