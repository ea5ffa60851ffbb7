package store

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/internal/blockcodec"
	"github.com/hupe1980/gtstore/matrix"
)

// Compression selects the codec of persisted blocks.
type Compression = blockcodec.Codec

const (
	CompressionNone = blockcodec.CodecNone
	CompressionLZ4  = blockcodec.CodecLZ4
	CompressionZstd = blockcodec.CodecZstd
)

const (
	// DefaultBlockSize is the number of sites per block.
	DefaultBlockSize = 1 << 16
	// DefaultWorkingSet is the expected number of blocks a reader keeps hot.
	DefaultWorkingSet = 16
	// DefaultAnnotationBlocks is the descriptor cache capacity in blocks.
	DefaultAnnotationBlocks = 8
	// DefaultLookAhead is the number of blocks prefetched after a miss.
	DefaultLookAhead = 2
	// DefaultMaxPrefetches caps outstanding prefetch tasks.
	DefaultMaxPrefetches = 4
	// DefaultRebuildTimeout bounds a rebuild.
	DefaultRebuildTimeout = 10 * time.Minute
)

// Option configures a Store.
type Option func(*options)

type options struct {
	blockSize        int
	cacheBlocks      int
	annotationBlocks int
	lookAhead        int
	maxPrefetches    int
	compression      Compression
	rebuildTimeout   time.Duration
	workers          int
	memoryLimit      int64
	ioLimit          int64
	logger           *slog.Logger
	metrics          MetricsObserver

	// Only used by Create; Open reads them from the manifest.
	maxNumAlleles int
	retainRare    bool
	codec         genotype.AlleleCodec
}

func defaultOptions() options {
	return options{
		blockSize:        DefaultBlockSize,
		cacheBlocks:      workingSetCapacity(DefaultWorkingSet),
		annotationBlocks: DefaultAnnotationBlocks,
		lookAhead:        DefaultLookAhead,
		maxPrefetches:    DefaultMaxPrefetches,
		compression:      CompressionZstd,
		rebuildTimeout:   DefaultRebuildTimeout,
		workers:          runtime.GOMAXPROCS(0),
		maxNumAlleles:    matrix.DefaultMaxNumAlleles,
		codec:            genotype.Nucleotide,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = matrix.DiscardLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsObserver{}
	}
	if o.codec == nil {
		o.codec = genotype.Nucleotide
	}
	return o
}

// workingSetCapacity sizes the genotype cache at 1.5x the working set.
func workingSetCapacity(blocks int) int {
	return max(1, (blocks*3+1)/2)
}

// WithBlockSize sets the number of sites per block of a new container.
func WithBlockSize(sites int) Option {
	return func(o *options) { o.blockSize = sites }
}

// WithWorkingSet sizes the genotype cache at 1.5x the given number of blocks.
func WithWorkingSet(blocks int) Option {
	return func(o *options) { o.cacheBlocks = workingSetCapacity(blocks) }
}

// WithCacheBlocks sets the genotype cache capacity in blocks exactly.
func WithCacheBlocks(blocks int) Option {
	return func(o *options) { o.cacheBlocks = blocks }
}

// WithAnnotationCacheBlocks sets the descriptor cache capacity in blocks.
func WithAnnotationCacheBlocks(blocks int) Option {
	return func(o *options) { o.annotationBlocks = blocks }
}

// WithLookAhead sets how many following blocks a miss prefetches. 0 disables
// prefetch.
func WithLookAhead(blocks int) Option {
	return func(o *options) { o.lookAhead = blocks }
}

// WithMaxPrefetches caps concurrently running prefetch tasks. Prefetches over
// the cap are dropped.
func WithMaxPrefetches(n int) Option {
	return func(o *options) { o.maxPrefetches = n }
}

// WithCompression sets the codec for blocks written from now on.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithRebuildTimeout bounds Rebuild.
func WithRebuildTimeout(d time.Duration) Option {
	return func(o *options) { o.rebuildTimeout = d }
}

// WithWorkers sizes the rebuild pool.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMemoryLimit caps the bytes held by the genotype cache and the column
// buffers of a running rebuild.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) { o.memoryLimit = bytes }
}

// WithIOLimit throttles rebuild reads to bytes per second. Prefetches are
// dropped while the budget is spent.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) { o.ioLimit = bytesPerSec }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *options) { o.metrics = m }
}

// WithMaxNumAlleles sets the allele table size of a new container.
func WithMaxNumAlleles(n int) Option {
	return func(o *options) { o.maxNumAlleles = n }
}

// WithRetainRare keeps a rare-allele slot in matrices built from a new container.
func WithRetainRare(retain bool) Option {
	return func(o *options) { o.retainRare = retain }
}

// WithAlleleCodec sets the allele codec of a new container.
func WithAlleleCodec(c genotype.AlleleCodec) Option {
	return func(o *options) { o.codec = c }
}
