// Package cache provides a size-bounded LRU used on the query path: the
// blobstore caching wrapper caches raw blob bytes, and the index caches
// decoded filters so repeated lookups against the same partition skip both
// the fetch and the decode.
//
// Cached values must be treated as immutable by all readers; that is what
// makes the cache safe to share across concurrent query goroutines without
// copying.
package cache
