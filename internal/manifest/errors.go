package manifest

import "errors"

var (
	// ErrIncompatibleVersion is returned for a manifest written by a newer format.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")

	// ErrNotFound is returned when the container has no CURRENT manifest.
	ErrNotFound = errors.New("manifest not found")

	// ErrCorrupt is returned when a manifest fails its magic or checksum test.
	ErrCorrupt = errors.New("corrupt manifest")
)
