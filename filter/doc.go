// Package filter defines the contract shared by all membership filter
// implementations and the self-describing blob envelope they serialize into.
//
// A filter answers approximate set membership: MayContain never returns a
// false negative for an inserted key, but may return a false positive for an
// absent one. This asymmetry is what makes filters useful for partition
// pruning: a negative answer proves the partition cannot contain the key.
//
// Filter kinds are registered by their packages (filter/bloom, filter/cuckoo)
// via RegisterLoader from an init function, mirroring how index types
// register binary loaders elsewhere in the hupe1980 ecosystem. Importing a
// filter package is enough to make its serialized form decodable:
//
//	import (
//	    "github.com/hupe1980/skipidx/filter"
//	    _ "github.com/hupe1980/skipidx/filter/bloom"
//	)
//
//	f, err := filter.Decode(blob)
//
// # Envelope format
//
// Serialized filters are wrapped in a fixed envelope so a blob is
// self-describing: kind, format version and compression can be determined
// without out-of-band metadata, and corruption is detected before any
// payload byte is interpreted. All multi-byte envelope fields are
// little-endian; this is the documented byte-order convention for every
// persisted artifact in this module.
package filter
