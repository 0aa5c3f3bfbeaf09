package skipidx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/skipidx/blobstore"
	"github.com/hupe1980/skipidx/filter"
	"github.com/hupe1980/skipidx/resource"
	"github.com/hupe1980/skipidx/testutil"
)

func testPartitions(n, keysPer int) []Partition {
	parts := make([]Partition, n)
	for i := range parts {
		parts[i] = Partition{
			ID:   PartitionID(testutil.SequentialKeys(i, 1)[0]), // "key-000000000<i>"
			Keys: testutil.KeySeq(testutil.SequentialKeys(i*keysPer, keysPer)),
		}
	}
	return parts
}

func TestNewBuilder_ValidatesPolicy(t *testing.T) {
	store := blobstore.NewMemoryStore()

	tests := []struct {
		name   string
		policy Policy
	}{
		{"unknown kind", Policy{Kind: filter.Kind(99)}},
		{"fpr too high", Policy{Kind: filter.KindBloom, TargetFPR: 1.5}},
		{"fpr negative", Policy{Kind: filter.KindBloom, TargetFPR: -0.1}},
		{"fingerprint too wide", Policy{Kind: filter.KindCuckoo, FingerprintBits: 20}},
		{"headroom below one", Policy{Kind: filter.KindBloom, TargetFPR: 0.01, Headroom: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(store, tt.policy)
			var ip *ErrInvalidParameters
			assert.ErrorAs(t, err, &ip)
		})
	}
}

func TestBuild_Bloom(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	b, err := NewBuilder(store, DefaultPolicy())
	require.NoError(t, err)

	parts := testPartitions(4, 1000)
	idx, report, err := b.Build(ctx, parts)
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()

	assert.Len(t, report.Succeeded, 4)
	assert.Empty(t, report.Failed)
	assert.Equal(t, uint64(1), idx.Version())
	assert.Equal(t, 4, idx.Partitions())

	// Every indexed key must be reported as possibly present.
	for i, part := range parts {
		for _, key := range testutil.SequentialKeys(i*1000, 1000) {
			result, err := idx.Query(ctx, part.ID, key)
			require.NoError(t, err)
			require.Equal(t, MaybePresent, result, "inserted key must never be reported absent")
		}
	}
}

func TestBuild_Cuckoo(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	b, err := NewBuilder(store, DefaultCuckooPolicy())
	require.NoError(t, err)

	parts := testPartitions(2, 500)
	idx, report, err := b.Build(ctx, parts)
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()

	assert.Len(t, report.Succeeded, 2)
	assert.Empty(t, report.Failed)

	entry, ok := idx.Lookup(parts[0].ID)
	require.True(t, ok)
	assert.Equal(t, filter.KindCuckoo, entry.Kind)
	assert.Equal(t, uint64(500), entry.Count)
	assert.Equal(t, uint32(16), entry.Params.FingerprintBits)

	for _, key := range testutil.SequentialKeys(0, 500) {
		result, err := idx.Query(ctx, parts[0].ID, key)
		require.NoError(t, err)
		require.Equal(t, MaybePresent, result)
	}
}

func TestBuild_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	b, err := NewBuilder(store, DefaultPolicy())
	require.NoError(t, err)

	parts := []Partition{
		{ID: "p1", Keys: testutil.KeySeq(testutil.SequentialKeys(0, 100))},
		{ID: "p2", Keys: testutil.KeySeq(testutil.SequentialKeys(100, 100))},
		{ID: "bad", Keys: nil}, // nil key sequence is rejected
		{ID: "p3", Keys: testutil.KeySeq(testutil.SequentialKeys(200, 100))},
	}

	idx, report, err := b.Build(ctx, parts)
	require.NoError(t, err, "sibling failures must not fail the build")
	defer func() { require.NoError(t, idx.Close()) }()

	assert.ElementsMatch(t, []PartitionID{"p1", "p2", "p3"}, report.Succeeded)
	require.Contains(t, report.Failed, PartitionID("bad"))
	var ip *ErrInvalidParameters
	assert.ErrorAs(t, report.Failed["bad"], &ip)

	// Healthy siblings answer queries as usual.
	result, err := idx.Query(ctx, "p1", testutil.SequentialKeys(0, 1)[0])
	require.NoError(t, err)
	assert.Equal(t, MaybePresent, result)

	// The failed partition has no manifest entry.
	result, err = idx.Query(ctx, "bad", []byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, UnknownPartition, result)
}

func TestBuild_DuplicatePartitionIDs(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	b, err := NewBuilder(store, DefaultPolicy())
	require.NoError(t, err)

	parts := []Partition{
		{ID: "p1", Keys: testutil.KeySeq(testutil.SequentialKeys(0, 10))},
		{ID: "p1", Keys: testutil.KeySeq(testutil.SequentialKeys(10, 10))},
	}

	idx, report, err := b.Build(ctx, parts)
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()

	// The first occurrence is built, the duplicate is rejected.
	assert.Equal(t, []PartitionID{"p1"}, report.Succeeded)
	require.Contains(t, report.Failed, PartitionID("p1"))
	var ip *ErrInvalidParameters
	assert.ErrorAs(t, report.Failed["p1"], &ip)

	assert.Equal(t, 1, idx.Partitions())
}

func TestBuild_EmptyPartition(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	b, err := NewBuilder(store, DefaultPolicy())
	require.NoError(t, err)

	idx, report, err := b.Build(ctx, []Partition{
		{ID: "empty", Keys: testutil.KeySeq(nil)},
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()

	assert.Equal(t, []PartitionID{"empty"}, report.Succeeded)

	// An empty partition prunes everything.
	result, err := idx.Query(ctx, "empty", []byte("any-key"))
	require.NoError(t, err)
	assert.Equal(t, DefinitelyAbsent, result)
}

func TestBuild_VersionsAdvance(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	b, err := NewBuilder(store, DefaultPolicy())
	require.NoError(t, err)

	idx1, _, err := b.Build(ctx, testPartitions(1, 10))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx1.Version())
	require.NoError(t, idx1.Close())

	idx2, _, err := b.Build(ctx, testPartitions(2, 10))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), idx2.Version())
	require.NoError(t, idx2.Close())

	// Open resolves the newest version.
	idx, err := Open(ctx, store)
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()
	assert.Equal(t, uint64(2), idx.Version())
	assert.Equal(t, 2, idx.Partitions())
}

func TestBuild_CanceledContext(t *testing.T) {
	store := blobstore.NewMemoryStore()

	b, err := NewBuilder(store, DefaultPolicy())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = b.Build(ctx, testPartitions(4, 10000))
	assert.ErrorIs(t, err, context.Canceled)

	// No manifest version became visible.
	_, err = Open(context.Background(), store)
	assert.ErrorIs(t, err, ErrNoManifest)
}

func TestBuild_WithResourceController(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	rc := resource.NewController(resource.Config{MaxBuildWorkers: 2})

	b, err := NewBuilder(store, DefaultPolicy(), WithResourceController(rc))
	require.NoError(t, err)

	idx, report, err := b.Build(ctx, testPartitions(8, 500))
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()

	assert.Len(t, report.Succeeded, 8)
	assert.Zero(t, rc.MemoryUsage(), "all reservations must be released after the build")
}

func TestBuild_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	metrics := &BasicMetricsCollector{}

	b, err := NewBuilder(store, DefaultPolicy(), WithMetricsCollector(metrics))
	require.NoError(t, err)

	idx, _, err := b.Build(ctx, testPartitions(3, 100))
	require.NoError(t, err)
	defer func() { require.NoError(t, idx.Close()) }()

	stats := metrics.GetStats()
	assert.Equal(t, int64(3), stats.BuildCount)
	assert.Equal(t, int64(300), stats.BuildKeys)
	assert.Zero(t, stats.BuildErrors)
}

func TestBuild_LocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())

	b, err := NewBuilder(store, DefaultPolicy())
	require.NoError(t, err)

	parts := testPartitions(2, 200)
	idx, report, err := b.Build(ctx, parts)
	require.NoError(t, err)
	require.Len(t, report.Succeeded, 2)
	require.NoError(t, idx.Close())

	reopened, err := Open(ctx, store)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	for _, key := range testutil.SequentialKeys(0, 200) {
		result, err := reopened.Query(ctx, parts[0].ID, key)
		require.NoError(t, err)
		require.Equal(t, MaybePresent, result)
	}
}
