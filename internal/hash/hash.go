package hash

import "github.com/zeebo/xxh3"

// Fixed seeds for the digest family. These are part of the serialized filter
// format: changing them invalidates every previously persisted filter.
const (
	seedPrimary   = 0x736b697069647831 // "skipidx1"
	seedSecondary = 0x736b697069647832 // "skipidx2"
)

// Sum64 returns the primary 64-bit digest of key.
// It is a pure function of key and is stable across processes.
func Sum64(key []byte) uint64 {
	return xxh3.HashSeed(key, seedPrimary)
}

// Sum64Seed returns a 64-bit digest of key under an explicit seed.
// Used where a caller needs an independent derivation (e.g. the cuckoo
// alternate-bucket hash of a fingerprint).
func Sum64Seed(key []byte, seed uint64) uint64 {
	return xxh3.HashSeed(key, seed)
}

// Probe returns the double-hashing pair for Bloom probes.
// The i-th probe position is (h1 + i*h2) mod m. h2 is forced odd so the
// probe sequence cycles through all positions when m is a power of two.
func Probe(key []byte) (h1, h2 uint64) {
	h1 = xxh3.HashSeed(key, seedPrimary)
	h2 = xxh3.HashSeed(key, seedSecondary) | 1
	return h1, h2
}

// Mix64 is a splitmix64 finalizer. Used to derive a well-distributed hash
// from small fixed-width values (e.g. a 16-bit fingerprint) where running
// xxh3 would be wasteful.
func Mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
