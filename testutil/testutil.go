package testutil

import (
	"fmt"
	"iter"
	"math/rand"
	"sync"
)

// RNG encapsulates a seeded random number generator.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Fill fills p with pseudo-random bytes.
func (r *RNG) Fill(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Read(p) //nolint:errcheck // never fails
}

// Keys generates n random keys of the given length.
func Keys(rng *RNG, n, keyLen int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = make([]byte, keyLen)
		rng.Fill(keys[i])
	}
	return keys
}

// SequentialKeys generates keys "key-<start>" .. "key-<start+n-1>" with
// zero-padded numbers. Two calls with disjoint ranges never overlap, which
// makes them convenient for false-positive measurements.
func SequentialKeys(start, n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%010d", start+i))
	}
	return keys
}

// KeySeq adapts a key slice to the iterator form the index builder consumes.
// The sequence is re-iterable.
func KeySeq(keys [][]byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}
}
