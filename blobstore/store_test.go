package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest runs the shared conformance checks against a backend.
func storeUnderTest(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("open missing", func(t *testing.T) {
		_, err := store.Open(ctx, "does/not/exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put and read all", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "filters/p1.filter", []byte("hello world")))

		data, err := ReadAll(ctx, store, "filters/p1.filter")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello world"), data)
	})

	t.Run("read at offset", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "ra", []byte("0123456789")))

		b, err := store.Open(ctx, "ra")
		require.NoError(t, err)
		defer func() { require.NoError(t, b.Close()) }()

		assert.Equal(t, int64(10), b.Size())

		p := make([]byte, 4)
		n, err := b.ReadAt(ctx, p, 3)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, []byte("3456"), p)
	})

	t.Run("read range", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "rr", []byte("0123456789")))

		b, err := store.Open(ctx, "rr")
		require.NoError(t, err)
		defer func() { require.NoError(t, b.Close()) }()

		r, err := b.ReadRange(ctx, 2, 5)
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, []byte("23456"), data)

		// Range past the end is clamped.
		r, err = b.ReadRange(ctx, 8, 100)
		require.NoError(t, err)
		data, err = io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, []byte("89"), data)
	})

	t.Run("create is atomic on close", func(t *testing.T) {
		w, err := store.Create(ctx, "created")
		require.NoError(t, err)

		_, err = w.Write([]byte("part1"))
		require.NoError(t, err)
		_, err = w.Write([]byte("part2"))
		require.NoError(t, err)

		// Not visible before Close.
		_, err = store.Open(ctx, "created")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, w.Close())

		data, err := ReadAll(ctx, store, "created")
		require.NoError(t, err)
		assert.Equal(t, []byte("part1part2"), data)
	})

	t.Run("list with prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "list/a", []byte("1")))
		require.NoError(t, store.Put(ctx, "list/b", []byte("2")))
		require.NoError(t, store.Put(ctx, "other/c", []byte("3")))

		names, err := store.List(ctx, "list/")
		require.NoError(t, err)
		assert.Equal(t, []string{"list/a", "list/b"}, names)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "del", []byte("x")))
		require.NoError(t, store.Delete(ctx, "del"))

		_, err := store.Open(ctx, "del")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is fine.
		require.NoError(t, store.Delete(ctx, "del"))
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	storeUnderTest(t, NewLocalStore(t.TempDir()))
}

func TestMemoryStore_OpenSnapshotsData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "a", []byte("v1")))

	b, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	require.NoError(t, store.Put(ctx, "a", []byte("v2")))

	data := make([]byte, 2)
	_, err = b.ReadAt(ctx, data, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data, "open handle must not observe later writes")
}

func TestLocalStore_ListOnEmptyRoot(t *testing.T) {
	store := NewLocalStore(t.TempDir() + "/never-created")
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
