package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrConcurrentModification is returned by CommitStore.Commit when another
// writer already committed the same version.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// BlobStore is an abstraction for storing immutable data blobs
// (filters, manifests).
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new writable blob. The blob becomes visible
	// atomically when Close returns.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over [off, off+length).
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	io.Closer
}

// WritableBlob is a write-once handle created by BlobStore.Create.
type WritableBlob interface {
	io.Writer

	// Sync flushes buffered data to durable storage where the backend
	// supports it; a no-op for object stores that only commit on Close.
	Sync() error

	// Close finalizes the blob. The blob is not visible until Close
	// returns nil.
	io.Closer
}

// CommitStore publishes manifest versions atomically. It exists because
// plain object stores have no compare-and-swap: concurrent writers need an
// external arbiter to agree on the current manifest.
type CommitStore interface {
	// Commit publishes manifestName as the given version. It fails if the
	// version was already committed by another writer.
	Commit(ctx context.Context, version uint64, manifestName string) error

	// Latest returns the highest committed version and its manifest name.
	// Returns ErrNotFound if nothing was committed yet.
	Latest(ctx context.Context) (version uint64, manifestName string, err error)
}

// ReadAll reads an entire blob. This is the common access path for filter
// blobs, which are small and always consumed whole.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	data := make([]byte, b.Size())
	if len(data) == 0 {
		return data, nil
	}
	n, err := b.ReadAt(ctx, data, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return data[:n], nil
}
