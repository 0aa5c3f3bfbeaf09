package filter

import (
	"errors"
	"fmt"
	"io"
)

// Kind identifies a filter implementation in serialized form.
// Values are part of the on-disk format and must never be reused.
type Kind uint8

const (
	// KindUnknown is the zero value; never serialized.
	KindUnknown Kind = 0
	// KindBloom is a bit-array Bloom filter (no deletion).
	KindBloom Kind = 1
	// KindCuckoo is a fingerprint-bucket Cuckoo filter (supports deletion).
	KindCuckoo Kind = 2
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBloom:
		return "bloom"
	case KindCuckoo:
		return "cuckoo"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Filter is the contract shared by all membership filters.
//
// Implementations are NOT safe for concurrent mutation; a filter is
// exclusively owned by one goroutine during its build phase. After
// serialization the decoded form is immutable in practice and safe for
// concurrent MayContain calls as long as no Insert/Delete is issued.
type Filter interface {
	// Kind returns the filter implementation tag.
	Kind() Kind

	// Insert adds a key. Bloom filters never fail; Cuckoo filters return
	// ErrFilterFull when the eviction budget is exhausted.
	Insert(key []byte) error

	// MayContain reports whether key may be in the set.
	// A false result is definitive: the key was never inserted
	// (or, for Cuckoo, was deleted).
	MayContain(key []byte) bool

	// Count returns the number of successful inserts minus deletions.
	Count() uint64

	// SizeBytes returns the in-memory payload size of the filter.
	SizeBytes() int

	// WriteTo serializes the raw filter payload (without envelope).
	WriteTo(w io.Writer) (int64, error)
}

// Deletable is implemented by filters that support key deletion.
// Bloom filters deliberately do not implement it: deletion is structurally
// impossible for them, and a no-op Delete would hide real bugs.
type Deletable interface {
	// Delete removes one occurrence of key's fingerprint and reports whether
	// anything was removed.
	//
	// Caller contract: only delete keys that were successfully inserted and
	// not yet deleted. Deleting a never-inserted key is undefined: if its
	// fingerprint collides with a different key's, that other key's entry is
	// silently removed. This is an inherent property of fingerprint-based
	// filters, not a defect.
	Delete(key []byte) bool
}

// ErrFilterFull is returned by Insert when a Cuckoo filter's eviction chain
// exceeded its kick budget. The filter is left unchanged; the caller may
// delete entries to make room, or rebuild with a larger capacity.
var ErrFilterFull = errors.New("filter: filter full")

// ErrCorruptData indicates a serialized filter whose metadata disagrees with
// its payload (bad magic, truncated payload, checksum mismatch, ...).
// It is always surfaced to the caller: a corrupt filter must never silently
// degrade into an "absent" answer.
var ErrCorruptData = errors.New("filter: corrupt data")

// ErrInvalidParameters indicates unusable sizing input at construction.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidParameters struct {
	Param  string
	Reason string
}

func (e *ErrInvalidParameters) Error() string {
	return fmt.Sprintf("filter: invalid parameter %s: %s", e.Param, e.Reason)
}
