package gtstore

import "github.com/hupe1980/gtstore/matrix"

// Errors shared by every backing. Match them with errors.Is.
var (
	ErrInvalidArgument = matrix.ErrInvalidArgument
	ErrUnsupportedAxis = matrix.ErrUnsupportedAxis
	ErrConsistency     = matrix.ErrConsistency
	ErrNotReady        = matrix.ErrNotReady
	ErrTimeout         = matrix.ErrTimeout
	ErrIO              = matrix.ErrIO
	ErrClosed          = matrix.ErrClosed
)

// ConsistencyError reports a cell with more than two alleles set.
type ConsistencyError = matrix.ConsistencyError
