// Package skipidx builds and queries partition-pruning membership indexes.
//
// A query engine that keeps data in many partitions (files, row groups,
// shards) can ask skipidx whether a key might live in a partition before
// paying to scan it. One compact probabilistic filter is built per partition
// (Bloom or Cuckoo), serialized into a self-describing blob, and published
// through a versioned manifest. At query time the index answers with a
// tristate per partition: definitely absent, maybe present, or unknown
// partition. "Definitely absent" is exact; "maybe present" carries the
// filter's configured false-positive rate.
//
// # Building
//
//	store := blobstore.NewLocalStore("./index")
//	b, err := skipidx.NewBuilder(store, skipidx.DefaultPolicy())
//	if err != nil { ... }
//
//	idx, report, err := b.Build(ctx, []skipidx.Partition{
//	    {ID: "2026-08/part-0001", Keys: keysOf(part1)},
//	    {ID: "2026-08/part-0002", Keys: keysOf(part2)},
//	})
//
// Partitions are built in parallel; a failure in one partition never poisons
// its siblings. The per-partition outcome is in the BuildReport.
//
// # Querying
//
//	idx, err := skipidx.Open(ctx, store)
//	bm, err := idx.Prune(ctx, []byte("order-8812"))
//	// bm holds the ordinals of partitions that must still be scanned.
//
// Filters are fetched lazily and cached; the read path is safe for any
// number of concurrent goroutines.
package skipidx
