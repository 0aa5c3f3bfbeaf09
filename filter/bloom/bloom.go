package bloom

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/skipidx/filter"
	"github.com/hupe1980/skipidx/internal/hash"
)

func init() {
	filter.RegisterLoader(filter.KindBloom, func(r io.Reader) (filter.Filter, error) {
		return ReadFrom(r)
	})
}

const (
	// maxK caps the probe count to keep inserts cheap; beyond this the FPR
	// gain is negligible for any practical (n, p).
	maxK = 32

	// minBits is the smallest bit array we allocate (one word).
	minBits = 64
)

// Filter is a Bloom filter. It is not safe for concurrent mutation; see the
// filter package for the ownership model.
type Filter struct {
	bits  *bitset.BitSet
	m     uint64 // total bits
	k     uint32 // probes per key
	count uint64 // inserts so far
}

// Size computes the optimal (m, k) for the expected element count n and
// target false-positive rate p:
//
//	m = -n*ln(p) / (ln 2)^2
//	k = (m/n) * ln 2
//
// m is rounded up to a multiple of 64; k is clamped to [1, 32].
func Size(n uint64, p float64) (m uint64, k uint32) {
	mf := -float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)

	m = (uint64(math.Ceil(mf)) + 63) / 64 * 64
	if m < minBits {
		m = minBits
	}

	k = uint32(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > maxK {
		k = maxK
	}
	return m, k
}

// New creates a Bloom filter sized for n expected elements at a target
// false-positive rate p in (0, 1).
func New(n uint64, p float64) (*Filter, error) {
	if n == 0 {
		return nil, &filter.ErrInvalidParameters{Param: "n", Reason: "expected element count must be positive"}
	}
	if p <= 0 || p >= 1 {
		return nil, &filter.ErrInvalidParameters{Param: "p", Reason: fmt.Sprintf("false-positive rate %g outside (0, 1)", p)}
	}

	m, k := Size(n, p)
	return NewWithSize(m, k), nil
}

// NewWithSize creates a Bloom filter with explicit parameters.
// m is rounded up to a word multiple; k is clamped to [1, 32].
func NewWithSize(m uint64, k uint32) *Filter {
	m = (m + 63) / 64 * 64
	if m < minBits {
		m = minBits
	}
	if k < 1 {
		k = 1
	}
	if k > maxK {
		k = maxK
	}

	return &Filter{
		bits: bitset.New(uint(m)),
		m:    m,
		k:    k,
	}
}

// Kind implements filter.Filter.
func (f *Filter) Kind() filter.Kind { return filter.KindBloom }

// Insert adds a key. After Insert(x), MayContain(x) always returns true.
// Insert never fails.
func (f *Filter) Insert(key []byte) error {
	h1, h2 := hash.Probe(key)
	for i := uint32(0); i < f.k; i++ {
		f.bits.Set(uint((h1 + uint64(i)*h2) % f.m))
	}
	f.count++
	return nil
}

// MayContain reports whether key may have been inserted.
// false is definitive; true may be a false positive.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := hash.Probe(key)
	for i := uint32(0); i < f.k; i++ {
		if !f.bits.Test(uint((h1 + uint64(i)*h2) % f.m)) {
			return false
		}
	}
	return true
}

// Count returns the number of inserts.
func (f *Filter) Count() uint64 { return f.count }

// NumBits returns the bit array length m.
func (f *Filter) NumBits() uint64 { return f.m }

// NumHashes returns the probe count k.
func (f *Filter) NumHashes() uint32 { return f.k }

// SizeBytes returns the in-memory size of the bit array.
func (f *Filter) SizeBytes() int { return int(f.m / 8) }

// EstimatedFPR returns the estimated false-positive rate at the current fill:
//
//	(1 - e^(-k*n/m))^k
func (f *Filter) EstimatedFPR() float64 {
	if f.count == 0 {
		return 0
	}
	kn := float64(f.k) * float64(f.count)
	return math.Pow(1-math.Exp(-kn/float64(f.m)), float64(f.k))
}

// headerSize is m (8) + k (4) + count (8).
const headerSize = 20

// WriteTo serializes the filter payload: a little-endian header followed by
// the bit array in bitset's stable binary format.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[0:8], f.m)
	binary.LittleEndian.PutUint32(header[8:12], f.k)
	binary.LittleEndian.PutUint64(header[12:20], f.count)

	n, err := w.Write(header[:])
	written := int64(n)
	if err != nil {
		return written, err
	}

	bn, err := f.bits.WriteTo(w)
	return written + bn, err
}

// ReadFrom deserializes a filter written by WriteTo.
// Returns filter.ErrCorruptData if the header disagrees with the payload.
func ReadFrom(r io.Reader) (*Filter, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: bloom header: %v", filter.ErrCorruptData, err)
	}

	m := binary.LittleEndian.Uint64(header[0:8])
	k := binary.LittleEndian.Uint32(header[8:12])
	count := binary.LittleEndian.Uint64(header[12:20])

	if m < minBits || m%64 != 0 {
		return nil, fmt.Errorf("%w: bloom bit count %d", filter.ErrCorruptData, m)
	}
	if k < 1 || k > maxK {
		return nil, fmt.Errorf("%w: bloom hash count %d", filter.ErrCorruptData, k)
	}

	var bits bitset.BitSet
	if _, err := bits.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: bloom bit array: %v", filter.ErrCorruptData, err)
	}
	if uint64(bits.Len()) != m {
		return nil, fmt.Errorf("%w: bloom bit array has %d bits, header says %d", filter.ErrCorruptData, bits.Len(), m)
	}

	return &Filter{
		bits:  &bits,
		m:     m,
		k:     k,
		count: count,
	}, nil
}
