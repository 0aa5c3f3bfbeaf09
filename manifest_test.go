package skipidx

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/skipidx/blobstore"
	"github.com/hupe1980/skipidx/codec"
)

func TestManifestBlobName(t *testing.T) {
	assert.Equal(t, "MANIFEST-000001", manifestBlobName(1))
	assert.Equal(t, "MANIFEST-000042", manifestBlobName(42))
	assert.Equal(t, "MANIFEST-1000000", manifestBlobName(1000000))
}

func TestParseManifestVersion(t *testing.T) {
	v, err := parseManifestVersion("MANIFEST-000007")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	_, err = parseManifestVersion("SNAPSHOT-000007")
	assert.ErrorIs(t, err, ErrCorruptData)

	_, err = parseManifestVersion("MANIFEST-seven")
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestPublishAndLoadManifest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	m := &Manifest{
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Codec:     codec.Default.Name(),
		Entries: []PartitionEntry{
			{ID: "p1", BlobName: "filters/p1.filter", Count: 10},
		},
	}

	name, err := publishManifest(ctx, store, nil, codec.Default, m)
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000001", name)

	loaded, err := loadLatestManifest(ctx, store, nil, codec.Default)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.Version)
	require.Len(t, loaded.Entries, 1)
	assert.Equal(t, PartitionID("p1"), loaded.Entries[0].ID)
}

func TestLoadLatestManifest_Empty(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	_, err := loadLatestManifest(ctx, store, nil, codec.Default)
	assert.ErrorIs(t, err, ErrNoManifest)
}

func TestLoadLatestManifest_CorruptPointer(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	require.NoError(t, store.Put(ctx, currentBlobName, []byte("garbage")))

	_, err := loadLatestManifest(ctx, store, nil, codec.Default)
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestLoadLatestManifest_MissingBlob(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	// Pointer references a manifest blob that was never written.
	require.NoError(t, store.Put(ctx, currentBlobName, []byte("MANIFEST-000003")))

	_, err := loadLatestManifest(ctx, store, nil, codec.Default)
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestLoadLatestManifest_CorruptBody(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	require.NoError(t, store.Put(ctx, "MANIFEST-000001", []byte("{not json")))
	require.NoError(t, store.Put(ctx, currentBlobName, []byte("MANIFEST-000001")))

	_, err := loadLatestManifest(ctx, store, nil, codec.Default)
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestLoadLatestManifest_VersionMismatch(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	m := &Manifest{Version: 5, Codec: codec.Default.Name()}
	data := codec.MustMarshal(codec.Default, m)
	require.NoError(t, store.Put(ctx, "MANIFEST-000002", data))
	require.NoError(t, store.Put(ctx, currentBlobName, []byte("MANIFEST-000002")))

	_, err := loadLatestManifest(ctx, store, nil, codec.Default)
	assert.ErrorIs(t, err, ErrCorruptData)
}

// fakeCommitStore is an in-memory blobstore.CommitStore for tests.
type fakeCommitStore struct {
	mu       sync.Mutex
	versions map[uint64]string
}

func newFakeCommitStore() *fakeCommitStore {
	return &fakeCommitStore{versions: make(map[uint64]string)}
}

func (f *fakeCommitStore) Commit(_ context.Context, version uint64, manifestName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.versions[version]; exists {
		return blobstore.ErrConcurrentModification
	}
	f.versions[version] = manifestName
	return nil
}

func (f *fakeCommitStore) Latest(_ context.Context) (uint64, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.versions) == 0 {
		return 0, "", blobstore.ErrNotFound
	}
	keys := make([]uint64, 0, len(f.versions))
	for v := range f.versions {
		keys = append(keys, v)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	return keys[0], f.versions[keys[0]], nil
}

func TestPublishManifest_CommitStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	commit := newFakeCommitStore()

	m := &Manifest{Version: 1, Codec: codec.Default.Name()}
	_, err := publishManifest(ctx, store, commit, codec.Default, m)
	require.NoError(t, err)

	// No CURRENT pointer blob is written when a commit store arbitrates.
	_, err = blobstore.ReadAll(ctx, store, currentBlobName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	loaded, err := loadLatestManifest(ctx, store, commit, codec.Default)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.Version)

	// Re-publishing the same version loses the commit race.
	_, err = publishManifest(ctx, store, commit, codec.Default, m)
	assert.ErrorIs(t, err, blobstore.ErrConcurrentModification)
}
