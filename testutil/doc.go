// Package testutil provides testing utilities for skipidx.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG and deterministic key generators
// so false-positive-rate assertions are reproducible across runs.
//
// # Key Generation
//
//	rng := testutil.NewRNG(seed)
//	keys := testutil.Keys(rng, 1000, 16)        // 1000 random 16-byte keys
//	keys := testutil.SequentialKeys(0, 1000)     // "key-0000000000" ...
package testutil
