package skipidx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/skipidx/blobstore"
	"github.com/hupe1980/skipidx/testutil"
)

func TestResult_String(t *testing.T) {
	assert.Equal(t, "definitely_absent", DefinitelyAbsent.String())
	assert.Equal(t, "maybe_present", MaybePresent.String())
	assert.Equal(t, "unknown_partition", UnknownPartition.String())
	assert.Equal(t, "result(9)", Result(9).String())
}

func TestOpen_NoManifest(t *testing.T) {
	store := blobstore.NewMemoryStore()

	_, err := Open(context.Background(), store)
	assert.ErrorIs(t, err, ErrNoManifest)
}

// buildIndex publishes partitions p0..p<n-1> with disjoint sequential key
// ranges and reopens the result fresh from the store.
func buildIndex(t *testing.T, store blobstore.BlobStore, n, keysPer int, optFns ...Option) *Index {
	t.Helper()
	ctx := context.Background()

	b, err := NewBuilder(store, DefaultPolicy(), optFns...)
	require.NoError(t, err)

	parts := make([]Partition, n)
	for i := range parts {
		parts[i] = Partition{
			ID:   PartitionID(rune('a' + i)),
			Keys: testutil.KeySeq(testutil.SequentialKeys(i*keysPer, keysPer)),
		}
	}
	built, report, err := b.Build(ctx, parts)
	require.NoError(t, err)
	require.Empty(t, report.Failed)
	require.NoError(t, built.Close())

	idx, err := Open(ctx, store, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, idx.Close()) })
	return idx
}

func TestQuery_Tristate(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, blobstore.NewMemoryStore(), 3, 1000)

	// Keys 0..999 went into partition "a".
	result, err := idx.Query(ctx, "a", testutil.SequentialKeys(0, 1)[0])
	require.NoError(t, err)
	assert.Equal(t, MaybePresent, result)

	result, err = idx.Query(ctx, "nope", []byte("whatever"))
	require.NoError(t, err)
	assert.Equal(t, UnknownPartition, result)
}

func TestQuery_FalsePositiveRate(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, blobstore.NewMemoryStore(), 1, 10000)

	// Probe 1000 keys that were never inserted. At a 1% target rate we
	// expect ~10 false positives; 50 leaves plenty of margin.
	falsePositives := 0
	for _, key := range testutil.SequentialKeys(1_000_000, 1000) {
		result, err := idx.Query(ctx, "a", key)
		require.NoError(t, err)
		if result == MaybePresent {
			falsePositives++
		}
	}
	assert.Less(t, falsePositives, 50, "false-positive rate far above target")
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, blobstore.NewMemoryStore(), 4, 1000)

	// Key 2500 lives in partition "c" (ordinal 2).
	key := testutil.SequentialKeys(2500, 1)[0]
	bm, err := idx.Prune(ctx, key)
	require.NoError(t, err)

	assert.True(t, bm.Contains(2), "owning partition must survive pruning")

	ids := idx.CandidateIDs(bm)
	assert.Contains(t, ids, PartitionID("c"))
	assert.LessOrEqual(t, len(ids), 4)
}

func TestPrune_AggregateSelectivity(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, blobstore.NewMemoryStore(), 4, 1000)

	// 100 absent keys against 4 partitions = 400 probes. At 1% FPR we
	// expect ~4 spurious candidates; 40 leaves a wide margin.
	spurious := uint64(0)
	for _, key := range testutil.SequentialKeys(1_000_000, 100) {
		bm, err := idx.Prune(ctx, key)
		require.NoError(t, err)
		spurious += bm.GetCardinality()
	}
	assert.Less(t, spurious, uint64(40), "pruning should eliminate nearly all partitions for absent keys")
}

func TestCandidateIDs_ManifestOrder(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, blobstore.NewMemoryStore(), 3, 100)

	// A full bitmap maps back to all IDs in manifest order.
	key := testutil.SequentialKeys(0, 1)[0]
	bm, err := idx.Prune(ctx, key)
	require.NoError(t, err)
	for i := 0; i < idx.Partitions(); i++ {
		bm.Add(uint32(i))
	}
	assert.Equal(t, []PartitionID{"a", "b", "c"}, idx.CandidateIDs(bm))
}

func TestQuery_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	idx := buildIndex(t, store, 1, 100, WithFilterCache(0))

	entry, ok := idx.Lookup("a")
	require.True(t, ok)

	blob, err := blobstore.ReadAll(ctx, store, entry.BlobName)
	require.NoError(t, err)
	blob[len(blob)/2] ^= 0xFF
	require.NoError(t, store.Put(ctx, entry.BlobName, blob))

	_, err = idx.Query(ctx, "a", []byte("key"))
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestQuery_CachesFilters(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	metrics := &BasicMetricsCollector{}
	idx := buildIndex(t, store, 1, 100, WithMetricsCollector(metrics))

	for i := 0; i < 10; i++ {
		_, err := idx.Query(ctx, "a", testutil.SequentialKeys(i, 1)[0])
		require.NoError(t, err)
	}

	stats := metrics.GetStats()
	assert.Equal(t, int64(10), stats.QueryCount)
	assert.Equal(t, int64(1), stats.FilterLoads, "repeat queries must hit the decoded-filter cache")
}

func TestQuery_CacheDisabled(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	metrics := &BasicMetricsCollector{}
	idx := buildIndex(t, store, 1, 100, WithMetricsCollector(metrics), WithFilterCache(0))

	for i := 0; i < 3; i++ {
		_, err := idx.Query(ctx, "a", testutil.SequentialKeys(i, 1)[0])
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), metrics.GetStats().FilterLoads)
}

func TestIndex_Closed(t *testing.T) {
	ctx := context.Background()
	idx := buildIndex(t, blobstore.NewMemoryStore(), 1, 10)

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close(), "Close is idempotent")

	_, err := idx.Query(ctx, "a", []byte("key"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = idx.Prune(ctx, []byte("key"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIndex_Lookup(t *testing.T) {
	idx := buildIndex(t, blobstore.NewMemoryStore(), 2, 50)

	entry, ok := idx.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, PartitionID("b"), entry.ID)
	assert.Equal(t, uint64(50), entry.Count)
	assert.NotZero(t, entry.Checksum)
	assert.NotZero(t, entry.BlobSize)

	_, ok = idx.Lookup("missing")
	assert.False(t, ok)
}

func TestIndex_WithCommitStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	commit := newFakeCommitStore()

	b, err := NewBuilder(store, DefaultPolicy(), WithCommitStore(commit))
	require.NoError(t, err)

	idx1, _, err := b.Build(ctx, []Partition{
		{ID: "p1", Keys: testutil.KeySeq(testutil.SequentialKeys(0, 100))},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx1.Version())
	require.NoError(t, idx1.Close())

	idx2, _, err := b.Build(ctx, []Partition{
		{ID: "p1", Keys: testutil.KeySeq(testutil.SequentialKeys(0, 100))},
		{ID: "p2", Keys: testutil.KeySeq(testutil.SequentialKeys(100, 100))},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), idx2.Version())
	require.NoError(t, idx2.Close())

	idx, err := Open(ctx, store, WithCommitStore(commit))
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()
	assert.Equal(t, uint64(2), idx.Version())
	assert.Equal(t, 2, idx.Partitions())
}
