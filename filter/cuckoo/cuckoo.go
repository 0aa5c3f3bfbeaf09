package cuckoo

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/hupe1980/skipidx/filter"
	"github.com/hupe1980/skipidx/internal/hash"
)

func init() {
	filter.RegisterLoader(filter.KindCuckoo, func(r io.Reader) (filter.Filter, error) {
		return ReadFrom(r)
	})
}

const (
	// DefaultSlotsPerBucket gives the ~95% usable load factor from the
	// cuckoo filter paper.
	DefaultSlotsPerBucket = 4

	// DefaultFingerprintBits yields a false-positive rate of roughly
	// 2*slots/2^bits ~= 0.012%.
	DefaultFingerprintBits = 16

	// DefaultMaxKicks bounds eviction chains before an insert fails.
	DefaultMaxKicks = 500

	// defaultSeed feeds the eviction RNG so rebuilds are reproducible.
	defaultSeed = 0x736b697069647863

	minFingerprintBits = 4
	maxFingerprintBits = 16
	maxSlotsPerBucket  = 8

	// emptySlot marks a vacant slot. Fingerprints are drawn from
	// [1, 2^fpBits), never 0.
	emptySlot = uint16(0)
)

// Option configures a Filter at construction.
type Option func(*config)

type config struct {
	slotsPerBucket uint32
	fpBits         uint32
	maxKicks       uint32
	seed           uint64
}

// WithSlotsPerBucket sets the bucket width (default 4, max 8).
func WithSlotsPerBucket(slots uint32) Option {
	return func(c *config) { c.slotsPerBucket = slots }
}

// WithFingerprintBits sets the stored fingerprint width in bits
// (default 16, range 4..16). More bits lower the false-positive rate and
// raise the footprint.
func WithFingerprintBits(b uint32) Option {
	return func(c *config) { c.fpBits = b }
}

// WithMaxKicks sets the eviction-chain budget per insert (default 500).
func WithMaxKicks(k uint32) Option {
	return func(c *config) { c.maxKicks = k }
}

// WithSeed seeds the eviction RNG. Two filters built with the same seed and
// the same insert sequence are byte-identical.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// Filter is a Cuckoo filter. It is not safe for concurrent mutation; see the
// filter package for the ownership model.
type Filter struct {
	slots      []uint16 // numBuckets * slotsPerBucket, 0 = empty
	numBuckets uint64   // power of two
	mask       uint64   // numBuckets - 1
	slotsPer   uint32
	fpBits     uint32
	fpMask     uint16
	maxKicks   uint32
	count      uint64
	rng        splitmix64
}

// New creates a Cuckoo filter sized for n expected elements.
// The bucket count is ceil(n/slotsPerBucket) rounded up to a power of two,
// so indexing is a mask instead of a modulo.
func New(n uint64, opts ...Option) (*Filter, error) {
	cfg := config{
		slotsPerBucket: DefaultSlotsPerBucket,
		fpBits:         DefaultFingerprintBits,
		maxKicks:       DefaultMaxKicks,
		seed:           defaultSeed,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if n == 0 {
		return nil, &filter.ErrInvalidParameters{Param: "n", Reason: "expected element count must be positive"}
	}
	if cfg.slotsPerBucket == 0 || cfg.slotsPerBucket > maxSlotsPerBucket {
		return nil, &filter.ErrInvalidParameters{Param: "slotsPerBucket", Reason: fmt.Sprintf("%d outside 1..%d", cfg.slotsPerBucket, maxSlotsPerBucket)}
	}
	if cfg.fpBits < minFingerprintBits || cfg.fpBits > maxFingerprintBits {
		return nil, &filter.ErrInvalidParameters{Param: "fingerprintBits", Reason: fmt.Sprintf("%d outside %d..%d", cfg.fpBits, minFingerprintBits, maxFingerprintBits)}
	}
	if cfg.maxKicks == 0 {
		return nil, &filter.ErrInvalidParameters{Param: "maxKicks", Reason: "eviction budget must be positive"}
	}

	numBuckets := nextPowerOfTwo((n + uint64(cfg.slotsPerBucket) - 1) / uint64(cfg.slotsPerBucket))

	return &Filter{
		slots:      make([]uint16, numBuckets*uint64(cfg.slotsPerBucket)),
		numBuckets: numBuckets,
		mask:       numBuckets - 1,
		slotsPer:   cfg.slotsPerBucket,
		fpBits:     cfg.fpBits,
		fpMask:     uint16(1<<cfg.fpBits - 1),
		maxKicks:   cfg.maxKicks,
		rng:        splitmix64{state: cfg.seed},
	}, nil
}

// Kind implements filter.Filter.
func (f *Filter) Kind() filter.Kind { return filter.KindCuckoo }

// fingerprint derives a non-zero fingerprint from the top bits of the key
// digest, disjoint from the low bits used for the primary bucket index.
func (f *Filter) fingerprint(h uint64) uint16 {
	fp := uint16(h>>(64-f.fpBits)) & f.fpMask
	if fp == emptySlot {
		fp = 1
	}
	return fp
}

// altIndex returns the other candidate bucket for fp currently at index i.
// XOR makes the derivation an involution: altIndex(fp, altIndex(fp, i)) == i.
func (f *Filter) altIndex(fp uint16, i uint64) uint64 {
	return (i ^ hash.Mix64(uint64(fp))) & f.mask
}

// placeInBucket puts fp into a free slot of bucket i, if any.
func (f *Filter) placeInBucket(fp uint16, i uint64) bool {
	start := i * uint64(f.slotsPer)
	for s := start; s < start+uint64(f.slotsPer); s++ {
		if f.slots[s] == emptySlot {
			f.slots[s] = fp
			return true
		}
	}
	return false
}

func (f *Filter) bucketContains(fp uint16, i uint64) bool {
	start := i * uint64(f.slotsPer)
	for s := start; s < start+uint64(f.slotsPer); s++ {
		if f.slots[s] == fp {
			return true
		}
	}
	return false
}

// displacement is one journaled eviction step, recorded for rollback.
type displacement struct {
	slot uint64
	prev uint16
}

// Insert adds a key.
//
// Duplicate keys occupy separate slots (multiset semantics), so a later
// Delete removes exactly one occurrence.
//
// Returns filter.ErrFilterFull when both candidate buckets are full and the
// eviction budget is exhausted; the journaled eviction chain is rolled back,
// leaving the filter unchanged, so the caller can rebuild at a larger
// capacity and replay the same key stream.
func (f *Filter) Insert(key []byte) error {
	h := hash.Sum64(key)
	fp := f.fingerprint(h)
	i1 := h & f.mask

	if f.placeInBucket(fp, i1) {
		f.count++
		return nil
	}
	i2 := f.altIndex(fp, i1)
	if f.placeInBucket(fp, i2) {
		f.count++
		return nil
	}

	// Both candidate buckets full: evict. Victim bucket chosen at random so
	// repeated collisions do not always churn the same bucket.
	i := i1
	if f.rng.next()&1 == 1 {
		i = i2
	}

	journal := make([]displacement, 0, f.maxKicks)
	cur := fp
	for kick := uint32(0); kick < f.maxKicks; kick++ {
		slot := i*uint64(f.slotsPer) + uint64(f.rng.intn(int(f.slotsPer)))
		journal = append(journal, displacement{slot: slot, prev: f.slots[slot]})
		cur, f.slots[slot] = f.slots[slot], cur

		i = f.altIndex(cur, i)
		if f.placeInBucket(cur, i) {
			f.count++
			return nil
		}
	}

	// Budget exhausted: undo every displacement in reverse, restoring the
	// exact pre-insert state.
	for t := len(journal) - 1; t >= 0; t-- {
		f.slots[journal[t].slot] = journal[t].prev
	}
	return filter.ErrFilterFull
}

// MayContain reports whether key may be in the set.
// There are no false negatives for keys whose Insert succeeded and that were
// not deleted.
func (f *Filter) MayContain(key []byte) bool {
	h := hash.Sum64(key)
	fp := f.fingerprint(h)
	i1 := h & f.mask
	if f.bucketContains(fp, i1) {
		return true
	}
	return f.bucketContains(fp, f.altIndex(fp, i1))
}

// Delete removes one occurrence of key's fingerprint from either candidate
// bucket and reports whether anything was removed.
//
// Caller contract (see filter.Deletable): only delete keys known to have
// been successfully inserted and not yet deleted. A fingerprint collision
// with a different key can silently remove that key's entry instead.
func (f *Filter) Delete(key []byte) bool {
	h := hash.Sum64(key)
	fp := f.fingerprint(h)
	i1 := h & f.mask
	if f.deleteFromBucket(fp, i1) {
		return true
	}
	return f.deleteFromBucket(fp, f.altIndex(fp, i1))
}

func (f *Filter) deleteFromBucket(fp uint16, i uint64) bool {
	start := i * uint64(f.slotsPer)
	for s := start; s < start+uint64(f.slotsPer); s++ {
		if f.slots[s] == fp {
			f.slots[s] = emptySlot
			f.count--
			return true
		}
	}
	return false
}

// Count returns the number of stored fingerprints.
func (f *Filter) Count() uint64 { return f.count }

// Capacity returns the total slot count.
func (f *Filter) Capacity() uint64 { return f.numBuckets * uint64(f.slotsPer) }

// LoadFactor returns Count/Capacity.
func (f *Filter) LoadFactor() float64 {
	return float64(f.count) / float64(f.Capacity())
}

// NumBuckets returns the bucket count (a power of two).
func (f *Filter) NumBuckets() uint64 { return f.numBuckets }

// FingerprintBits returns the stored fingerprint width.
func (f *Filter) FingerprintBits() uint32 { return f.fpBits }

// SlotsPerBucket returns the bucket width.
func (f *Filter) SlotsPerBucket() uint32 { return f.slotsPer }

// SizeBytes returns the in-memory size of the slot array.
func (f *Filter) SizeBytes() int { return len(f.slots) * 2 }

// headerSize is numBuckets (8) + slotsPerBucket (4) + fingerprintBits (4) +
// maxKicks (4) + count (8).
const headerSize = 28

// WriteTo serializes the filter payload: a little-endian header followed by
// every slot (including empty sentinels) as uint16 little-endian.
func (f *Filter) WriteTo(w io.Writer) (int64, error) {
	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[0:8], f.numBuckets)
	binary.LittleEndian.PutUint32(header[8:12], f.slotsPer)
	binary.LittleEndian.PutUint32(header[12:16], f.fpBits)
	binary.LittleEndian.PutUint32(header[16:20], f.maxKicks)
	binary.LittleEndian.PutUint64(header[20:28], f.count)

	n, err := w.Write(header[:])
	written := int64(n)
	if err != nil {
		return written, err
	}

	body := make([]byte, len(f.slots)*2)
	for i, s := range f.slots {
		binary.LittleEndian.PutUint16(body[i*2:], s)
	}
	n, err = w.Write(body)
	return written + int64(n), err
}

// ReadFrom deserializes a filter written by WriteTo.
// Returns filter.ErrCorruptData if the header disagrees with the payload.
func ReadFrom(r io.Reader) (*Filter, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: cuckoo header: %v", filter.ErrCorruptData, err)
	}

	numBuckets := binary.LittleEndian.Uint64(header[0:8])
	slotsPer := binary.LittleEndian.Uint32(header[8:12])
	fpBits := binary.LittleEndian.Uint32(header[12:16])
	maxKicks := binary.LittleEndian.Uint32(header[16:20])
	count := binary.LittleEndian.Uint64(header[20:28])

	if numBuckets == 0 || numBuckets&(numBuckets-1) != 0 {
		return nil, fmt.Errorf("%w: cuckoo bucket count %d is not a power of two", filter.ErrCorruptData, numBuckets)
	}
	if slotsPer == 0 || slotsPer > maxSlotsPerBucket {
		return nil, fmt.Errorf("%w: cuckoo slots per bucket %d", filter.ErrCorruptData, slotsPer)
	}
	if fpBits < minFingerprintBits || fpBits > maxFingerprintBits {
		return nil, fmt.Errorf("%w: cuckoo fingerprint bits %d", filter.ErrCorruptData, fpBits)
	}
	if maxKicks == 0 {
		return nil, fmt.Errorf("%w: cuckoo kick budget is zero", filter.ErrCorruptData)
	}

	totalSlots := numBuckets * uint64(slotsPer)
	if count > totalSlots {
		return nil, fmt.Errorf("%w: cuckoo count %d exceeds capacity %d", filter.ErrCorruptData, count, totalSlots)
	}

	body := make([]byte, totalSlots*2)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: cuckoo slot array: %v", filter.ErrCorruptData, err)
	}

	fpMask := uint16(1<<fpBits - 1)
	slots := make([]uint16, totalSlots)
	for i := range slots {
		s := binary.LittleEndian.Uint16(body[i*2:])
		if s != emptySlot && s > fpMask {
			return nil, fmt.Errorf("%w: cuckoo slot %d holds %d, beyond %d-bit fingerprints", filter.ErrCorruptData, i, s, fpBits)
		}
		slots[i] = s
	}

	return &Filter{
		slots:      slots,
		numBuckets: numBuckets,
		mask:       numBuckets - 1,
		slotsPer:   slotsPer,
		fpBits:     fpBits,
		fpMask:     fpMask,
		maxKicks:   maxKicks,
		count:      count,
		rng:        splitmix64{state: defaultSeed},
	}, nil
}

func nextPowerOfTwo(v uint64) uint64 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len64(v-1)
}

// splitmix64 is a small allocation-free PRNG for victim selection.
// Seedable so identical builds produce identical filters.
type splitmix64 struct {
	state uint64
}

func (r *splitmix64) next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (r *splitmix64) intn(n int) int {
	return int(r.next() % uint64(n))
}
