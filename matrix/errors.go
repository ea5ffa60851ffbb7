package matrix

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gtstore/internal/workerpool"
)

var (
	// ErrInvalidArgument is returned for malformed construction input or
	// out-of-range indices.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedAxis is returned when a query needs a layout this object
	// does not hold. Transpose or rematerialize first.
	ErrUnsupportedAxis = errors.New("not optimized for this axis")

	// ErrConsistency is returned when a diploid cell claims more than two alleles.
	ErrConsistency = errors.New("consistency violation")

	// ErrNotReady is returned by a dirty store for queries that need derived
	// annotations. Rebuild first.
	ErrNotReady = errors.New("not ready: rebuild required")

	// ErrTimeout is returned when a bulk build or rebuild misses its deadline.
	ErrTimeout = workerpool.ErrTimeout

	// ErrIO wraps failures of the backing container.
	ErrIO = errors.New("i/o failure")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("closed")
)

// ConsistencyError reports a cell with more than two rank bits set.
type ConsistencyError struct {
	Taxon int
	Site  int
	Bits  int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation: taxon %d site %d has %d alleles set", e.Taxon, e.Site, e.Bits)
}

// Is makes errors.Is(err, ErrConsistency) match.
func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

func checkTaxon(t, n int) error {
	if t < 0 || t >= n {
		return invalidf("taxon %d out of range [0,%d)", t, n)
	}
	return nil
}

func checkSite(s, n int) error {
	if s < 0 || s >= n {
		return invalidf("site %d out of range [0,%d)", s, n)
	}
	return nil
}

// CheckTaxon validates a taxon index against a taxon count.
func CheckTaxon(t, n int) error { return checkTaxon(t, n) }

// CheckSite validates a site index against a site count.
func CheckSite(s, n int) error { return checkSite(s, n) }

// CheckRange validates a half-open site range.
func CheckRange(start, end, n int) error {
	if start < 0 || end > n || start > end {
		return invalidf("site range [%d,%d) out of range [0,%d)", start, end, n)
	}
	return nil
}
