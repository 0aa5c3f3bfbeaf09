// Package hash provides the keyed hashing primitives shared by all filter
// implementations, plus hardware-accelerated CRC32C checksums for data
// integrity.
//
// # Key hashing
//
// Both filter kinds derive everything they need (probe positions, bucket
// indices, fingerprints) from xxh3 digests of the raw key bytes. The seeds
// are package constants, so identical inputs map to identical digests across
// runs, processes and machines. This is what makes serialized filters
// portable: a filter built on one host answers queries identically on
// another.
//
//	h := hash.Sum64(key)              // primary digest
//	h1, h2 := hash.Probe(key)         // double-hashing pair, h2 odd
//
// # CRC32-Castagnoli (CRC32C)
//
// All blob checksums use CRC32-Castagnoli:
//
//   - Hardware acceleration on x86 (SSE4.2) and ARM (CRC extension)
//   - Superior error detection compared to CRC32-IEEE
//   - Industry standard (iSCSI, RocksDB, LevelDB)
//
// CRC32C is not cryptographically secure. It detects accidental corruption,
// not tampering.
package hash
