package matrix

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/hupe1980/gtstore/genotype"
)

// Layout selects the physical layout(s) of a BitMatrix.
type Layout uint8

const (
	SiteMajor Layout = iota
	TaxonMajor
	Both
)

func (l Layout) String() string {
	switch l {
	case SiteMajor:
		return "site-major"
	case TaxonMajor:
		return "taxon-major"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

const (
	// DefaultMaxNumAlleles is the number of ranked alleles kept per site.
	DefaultMaxNumAlleles = 6
	// DefaultBuildTimeout bounds a bulk build.
	DefaultBuildTimeout = 10 * time.Minute
)

// Config controls how a BitMatrix is built.
type Config struct {
	// MaxNumAlleles is the number of ranked alleles kept per site, in [1,14].
	MaxNumAlleles int
	// RetainRare adds a rank slot for alleles outside the top MaxNumAlleles.
	// Without it those gametes become unknown.
	RetainRare bool
	// Layout is the physical layout to build.
	Layout Layout
	// Workers sizes the build pool. <= 0 means runtime.GOMAXPROCS(0).
	Workers int
	// BuildTimeout aborts a build that runs longer. <= 0 means DefaultBuildTimeout.
	BuildTimeout time.Duration
	// Codec renders allele codes. nil means genotype.Nucleotide.
	Codec genotype.AlleleCodec
	// Logger receives build progress. nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns the standard build configuration.
func DefaultConfig() Config {
	return Config{
		MaxNumAlleles: DefaultMaxNumAlleles,
		Layout:        SiteMajor,
		Workers:       runtime.GOMAXPROCS(0),
		BuildTimeout:  DefaultBuildTimeout,
		Codec:         genotype.Nucleotide,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxNumAlleles < 1 || c.MaxNumAlleles > genotype.MaxRetainedAlleles {
		return invalidf("maxNumAlleles %d not in [1,%d]", c.MaxNumAlleles, genotype.MaxRetainedAlleles)
	}
	if c.Layout > Both {
		return invalidf("unknown layout %d", c.Layout)
	}
	return nil
}

// RankSlots returns the number of rank slots a matrix built with c holds.
func (c Config) RankSlots() int {
	if c.RetainRare {
		return c.MaxNumAlleles + 1
	}
	return c.MaxNumAlleles
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.BuildTimeout <= 0 {
		c.BuildTimeout = DefaultBuildTimeout
	}
	if c.Codec == nil {
		c.Codec = genotype.Nucleotide
	}
	if c.Logger == nil {
		c.Logger = DiscardLogger()
	}
	return c
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
