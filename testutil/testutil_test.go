package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestRNG_Reset(t *testing.T) {
	r := NewRNG(7)
	first := r.Uint64()
	r.Uint64()
	r.Reset()
	assert.Equal(t, first, r.Uint64())
	assert.Equal(t, int64(7), r.Seed())
}

func TestKeys(t *testing.T) {
	rng := NewRNG(1)
	keys := Keys(rng, 10, 16)
	require.Len(t, keys, 10)
	for _, k := range keys {
		assert.Len(t, k, 16)
	}
}

func TestSequentialKeys_Disjoint(t *testing.T) {
	a := SequentialKeys(0, 100)
	b := SequentialKeys(100, 100)

	seen := make(map[string]bool)
	for _, k := range a {
		seen[string(k)] = true
	}
	for _, k := range b {
		assert.False(t, seen[string(k)], "ranges must not overlap")
	}
}

func TestKeySeq_Reiterable(t *testing.T) {
	seq := KeySeq(SequentialKeys(0, 5))

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 5, count())
	assert.Equal(t, 5, count(), "sequence must support repeated iteration")
}
