package gtstore

import (
	"context"
	"time"

	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"
)

// MatrixBuilder is an immutable fluent builder for BitMatrix values. Each
// method returns a new builder with the updated configuration.
//
// Example:
//
//	m, err := gtstore.Matrix(raw).
//	    MaxNumAlleles(4).
//	    RetainRare().
//	    Layout(gtstore.Both).
//	    Workers(8).
//	    Build(ctx)
type MatrixBuilder struct {
	raw     *RawMatrix
	cfg     matrix.Config
	logger  *Logger
	metrics MetricsCollector
}

// Matrix creates a builder for raw with the default configuration.
func Matrix(raw *RawMatrix) MatrixBuilder {
	return MatrixBuilder{raw: raw, cfg: matrix.DefaultConfig()}
}

// MaxNumAlleles sets how many alleles per site are retained.
// Default: 6. Range: 1-14.
func (b MatrixBuilder) MaxNumAlleles(n int) MatrixBuilder {
	b.cfg.MaxNumAlleles = n
	return b
}

// RetainRare keeps alleles beyond MaxNumAlleles in a shared rare slot instead
// of dropping them to unknown.
func (b MatrixBuilder) RetainRare() MatrixBuilder {
	b.cfg.RetainRare = true
	return b
}

// Layout selects the indexed axes. Default: SiteMajor.
func (b MatrixBuilder) Layout(l Layout) MatrixBuilder {
	b.cfg.Layout = l
	return b
}

// Workers sets the build worker-pool size. Default: GOMAXPROCS.
func (b MatrixBuilder) Workers(n int) MatrixBuilder {
	b.cfg.Workers = n
	return b
}

// Timeout bounds the whole build. Default: 10 minutes.
func (b MatrixBuilder) Timeout(d time.Duration) MatrixBuilder {
	b.cfg.BuildTimeout = d
	return b
}

// Codec sets the allele codec of the built matrix.
func (b MatrixBuilder) Codec(c genotype.AlleleCodec) MatrixBuilder {
	b.cfg.Codec = c
	return b
}

// Logger sets the structured logger.
func (b MatrixBuilder) Logger(l *Logger) MatrixBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector.
func (b MatrixBuilder) Metrics(mc MetricsCollector) MatrixBuilder {
	b.metrics = mc
	return b
}

// Build ranks and packs the raw matrix.
func (b MatrixBuilder) Build(ctx context.Context) (*BitMatrix, error) {
	return BuildFromRawMatrix(ctx, b.raw,
		WithMaxNumAlleles(b.cfg.MaxNumAlleles),
		WithRetainRare(b.cfg.RetainRare),
		WithLayout(b.cfg.Layout),
		WithWorkers(b.cfg.Workers),
		WithBuildTimeout(b.cfg.BuildTimeout),
		WithCodec(b.cfg.Codec),
		WithLogger(b.logger),
		WithMetricsCollector(b.metrics),
	)
}

// MustBuild is like Build but panics on error.
func (b MatrixBuilder) MustBuild(ctx context.Context) *BitMatrix {
	m, err := b.Build(ctx)
	if err != nil {
		panic(err)
	}
	return m
}
