package blobstore

import (
	"context"

	"github.com/hupe1980/skipidx/internal/cache"
)

// CachingStore wraps a BlobStore and caches whole blobs in memory. Filter
// blobs are small (a few KB to a few MB) and read in full before decoding,
// so caching the entire blob is simpler and more effective than block-level
// caching.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU[string, []byte]
}

// NewCachingStore creates a CachingStore holding at most capacityBytes of
// blob data. capacityBytes defaults to 64MB if <= 0.
func NewCachingStore(inner BlobStore, capacityBytes int64) *CachingStore {
	if capacityBytes <= 0 {
		capacityBytes = 64 << 20
	}
	return &CachingStore{
		inner: inner,
		cache: cache.NewLRU[string, []byte](capacityBytes, func(v []byte) int64 { return int64(len(v)) }),
	}
}

// Open returns a blob backed by the cache. The first read pulls the whole
// blob from the inner store; later opens of the same name are served from
// memory.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if data, ok := s.cache.Get(name); ok {
		return &memoryBlob{data: data}, nil
	}

	data, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	s.cache.Set(name, data)
	return &memoryBlob{data: data}, nil
}

// Create passes through to the inner store. Writes are not cached; the blob
// enters the cache on its first read.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.invalidate(name)
	return s.inner.Create(ctx, name)
}

// Put writes through to the inner store and drops any cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes the blob from the inner store and the cache.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns cache hit/miss counters.
func (s *CachingStore) Stats() (hits, misses int64) {
	return s.cache.Stats()
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(key string) bool { return key == name })
}
