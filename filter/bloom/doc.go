// Package bloom implements a classic bit-array Bloom filter.
//
// A Bloom filter can definitively say "not in set" but may report false
// positives for "in set":
//
//   - If the filter says NOT present, the partition can be skipped (always correct).
//   - If the filter says maybe present, the partition must be scanned.
//
// Each key sets k bits derived by double hashing (h_i = h1 + i*h2 mod m), so
// one digest pair serves all probes. Bits are never cleared: deletion is
// structurally impossible, which is why this type does not implement
// filter.Deletable.
//
// There is no capacity limit. Inserting beyond the sizing target n does not
// fail; the false-positive rate just degrades past the configured p.
package bloom
