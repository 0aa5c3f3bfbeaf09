package skipidx

import (
	"errors"

	"github.com/hupe1980/skipidx/filter"
)

var (
	// ErrFilterFull is returned when a Cuckoo filter's eviction budget is
	// exhausted during build and the policy forbids growing.
	ErrFilterFull = filter.ErrFilterFull

	// ErrCorruptData indicates a filter blob or manifest whose metadata
	// disagrees with its payload. It is always surfaced: corruption must
	// never degrade into an "absent" answer.
	ErrCorruptData = filter.ErrCorruptData

	// ErrNoManifest is returned by Open when the store holds no committed
	// manifest yet.
	ErrNoManifest = errors.New("skipidx: no manifest found")

	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("skipidx: index closed")
)

// ErrInvalidParameters indicates unusable sizing or policy input.
// Defined in the filter package; aliased here so callers matching with
// errors.As need only one import.
type ErrInvalidParameters = filter.ErrInvalidParameters
