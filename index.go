package skipidx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/skipidx/blobstore"
	"github.com/hupe1980/skipidx/filter"
	"github.com/hupe1980/skipidx/internal/cache"
	"github.com/hupe1980/skipidx/internal/hash"
)

// Result is the tristate outcome of a membership query.
type Result uint8

const (
	// DefinitelyAbsent means the key is provably not in the partition.
	// This answer is exact; the partition can be skipped.
	DefinitelyAbsent Result = iota
	// MaybePresent means the partition must be scanned. Wrong with the
	// filter's false-positive probability, never the other way around.
	MaybePresent
	// UnknownPartition means the manifest has no entry for the queried ID.
	// A valid outcome, not an error: the host may hold partitions that were
	// never indexed.
	UnknownPartition
)

// String returns the canonical name of the result.
func (r Result) String() string {
	switch r {
	case DefinitelyAbsent:
		return "definitely_absent"
	case MaybePresent:
		return "maybe_present"
	case UnknownPartition:
		return "unknown_partition"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Index answers membership queries against a published manifest version.
//
// The read path is safe for any number of concurrent goroutines: decoded
// filters are immutable and shared through the cache.
type Index struct {
	store    blobstore.BlobStore
	manifest *Manifest
	entries  map[PartitionID]int // ID -> ordinal in manifest.Entries
	opts     options

	cache *cache.LRU[PartitionID, filter.Filter] // nil when caching disabled

	mu     sync.Mutex
	closed bool
}

// Open loads the latest committed manifest from the store.
// Returns ErrNoManifest when nothing was published yet.
func Open(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	m, err := loadLatestManifest(ctx, store, o.commitStore, o.codec)
	o.logger.LogManifest(ctx, "load", versionOf(m), entriesOf(m), err)
	if err != nil {
		return nil, err
	}

	return newIndex(store, m, o), nil
}

func versionOf(m *Manifest) uint64 {
	if m == nil {
		return 0
	}
	return m.Version
}

func entriesOf(m *Manifest) int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

func newIndex(store blobstore.BlobStore, m *Manifest, o options) *Index {
	idx := &Index{
		store:    store,
		manifest: m,
		entries:  make(map[PartitionID]int, len(m.Entries)),
		opts:     o,
	}
	for i, e := range m.Entries {
		idx.entries[e.ID] = i
	}
	if o.cacheBytes > 0 {
		idx.cache = cache.NewLRU[PartitionID, filter.Filter](o.cacheBytes, func(f filter.Filter) int64 {
			return int64(f.SizeBytes())
		})
	}
	return idx
}

// Version returns the manifest version the index was opened at.
func (idx *Index) Version() uint64 { return idx.manifest.Version }

// Partitions returns the number of indexed partitions.
func (idx *Index) Partitions() int { return len(idx.manifest.Entries) }

// Lookup returns the manifest entry for a partition.
func (idx *Index) Lookup(id PartitionID) (PartitionEntry, bool) {
	i, ok := idx.entries[id]
	if !ok {
		return PartitionEntry{}, false
	}
	return idx.manifest.Entries[i], true
}

// Query reports whether key may be present in the given partition.
//
// UnknownPartition is returned for IDs absent from the manifest. Errors are
// reserved for real failures: blob fetch errors and ErrCorruptData.
func (idx *Index) Query(ctx context.Context, id PartitionID, key []byte) (Result, error) {
	start := time.Now()
	result, err := idx.query(ctx, id, key)
	idx.opts.metricsCollector.RecordQuery(result, time.Since(start), err)
	idx.opts.logger.LogQuery(ctx, id, result, err)
	return result, err
}

func (idx *Index) query(ctx context.Context, id PartitionID, key []byte) (Result, error) {
	if idx.isClosed() {
		return DefinitelyAbsent, ErrClosed
	}

	i, ok := idx.entries[id]
	if !ok {
		return UnknownPartition, nil
	}

	f, err := idx.filterFor(ctx, &idx.manifest.Entries[i])
	if err != nil {
		return DefinitelyAbsent, err
	}

	if f.MayContain(key) {
		return MaybePresent, nil
	}
	return DefinitelyAbsent, nil
}

// Prune probes every partition for key and returns a bitmap of the ordinals
// (positions in manifest order) that must still be scanned. Partitions whose
// bit is clear are provably key-free.
func (idx *Index) Prune(ctx context.Context, key []byte) (*roaring.Bitmap, error) {
	start := time.Now()
	bm, err := idx.prune(ctx, key)

	candidates := 0
	if bm != nil {
		candidates = int(bm.GetCardinality())
	}
	idx.opts.metricsCollector.RecordPrune(candidates, len(idx.manifest.Entries), time.Since(start), err)
	idx.opts.logger.LogPrune(ctx, candidates, len(idx.manifest.Entries), err)
	return bm, err
}

func (idx *Index) prune(ctx context.Context, key []byte) (*roaring.Bitmap, error) {
	if idx.isClosed() {
		return nil, ErrClosed
	}

	bm := roaring.New()
	var bmMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.parallelism)

	for i := range idx.manifest.Entries {
		g.Go(func() error {
			f, err := idx.filterFor(gctx, &idx.manifest.Entries[i])
			if err != nil {
				return err
			}
			if f.MayContain(key) {
				bmMu.Lock()
				bm.Add(uint32(i))
				bmMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bm, nil
}

// CandidateIDs maps a Prune bitmap back to partition IDs, in manifest order.
func (idx *Index) CandidateIDs(bm *roaring.Bitmap) []PartitionID {
	ids := make([]PartitionID, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ordinal := it.Next()
		if int(ordinal) < len(idx.manifest.Entries) {
			ids = append(ids, idx.manifest.Entries[ordinal].ID)
		}
	}
	return ids
}

// filterFor returns the decoded filter for an entry, fetching and caching it
// on first use.
func (idx *Index) filterFor(ctx context.Context, entry *PartitionEntry) (filter.Filter, error) {
	if idx.cache != nil {
		if f, ok := idx.cache.Get(entry.ID); ok {
			return f, nil
		}
	}

	start := time.Now()
	f, blobSize, err := idx.loadFilter(ctx, entry)
	idx.opts.metricsCollector.RecordFilterLoad(blobSize, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if idx.cache != nil {
		idx.cache.Set(entry.ID, f)
	}
	return f, nil
}

func (idx *Index) loadFilter(ctx context.Context, entry *PartitionEntry) (filter.Filter, int, error) {
	blob, err := blobstore.ReadAll(ctx, idx.store, entry.BlobName)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch %s: %w", entry.BlobName, err)
	}

	if got := hash.CRC32C(blob); got != entry.Checksum {
		return nil, len(blob), fmt.Errorf("%w: blob %s checksum 0x%08x, manifest says 0x%08x",
			ErrCorruptData, entry.BlobName, got, entry.Checksum)
	}

	f, err := filter.Decode(blob)
	if err != nil {
		return nil, len(blob), fmt.Errorf("decode %s: %w", entry.BlobName, err)
	}
	if f.Kind() != entry.Kind {
		return nil, len(blob), fmt.Errorf("%w: blob %s holds a %s filter, manifest says %s",
			ErrCorruptData, entry.BlobName, f.Kind(), entry.Kind)
	}
	return f, len(blob), nil
}

func (idx *Index) isClosed() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.closed
}

// Close releases the decoded-filter cache. Queries after Close return
// ErrClosed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	if idx.cache != nil {
		idx.cache.Purge()
	}
	return nil
}
