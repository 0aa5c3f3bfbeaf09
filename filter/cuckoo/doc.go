// Package cuckoo implements a Cuckoo filter: approximate set membership with
// support for deletion.
//
// The filter stores a small fingerprint of each key in one of two candidate
// buckets. The alternate bucket is derived by XOR-ing the current bucket
// index with a hash of the fingerprint, so an entry can be relocated (or
// deleted) knowing only the fingerprint and the bucket it currently sits in.
// When both candidate buckets are full, an insert evicts a random resident
// fingerprint into its alternate bucket, cascading up to a configurable kick
// budget. Eviction chains are journaled and rolled back when the budget runs
// out, so a failed insert leaves the filter exactly as it was.
//
// Compared to a Bloom filter of similar footprint, a Cuckoo filter trades a
// hard capacity limit (inserts can fail near full load) for deletion support
// and better locality (two bucket probes per query instead of k scattered
// bit probes).
//
// Duplicate keys occupy separate slots, so insert/delete pairs balance:
// inserting a key twice and deleting it once still leaves it queryable.
package cuckoo
