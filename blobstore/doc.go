// Package blobstore provides storage abstraction for skipidx's immutable
// artifacts: serialized filter blobs and index manifests.
//
// BlobStore is the interface for reading and writing blobs. Implementations
// must be safe for concurrent use. Blobs are written once and never mutated;
// replacing a blob means writing a new one under a new name and republishing
// the manifest.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem with atomic Put via rename
//   - CachingStore: whole-blob LRU cache over any backend
//   - minio.Store: any S3-compatible object store via minio-go
//   - s3.Store: Amazon S3 with ranged reads and managed multipart uploads
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom backends. Filter blobs
// are small (kilobytes to low megabytes) and are usually read whole; ReadAll
// is the common access path, ranged reads are an optimization for backends
// that support them natively.
package blobstore
