package skipidx

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/skipidx/blobstore"
	"github.com/hupe1980/skipidx/filter"
	"github.com/hupe1980/skipidx/filter/bloom"
	"github.com/hupe1980/skipidx/filter/cuckoo"
	"github.com/hupe1980/skipidx/internal/hash"
	"github.com/hupe1980/skipidx/resource"
)

// Partition is one unit of data to index. The host supplies already-decoded
// byte keys; Keys must be re-iterable, because sizing and capacity growth
// consume the sequence more than once.
type Partition struct {
	ID   PartitionID
	Keys iter.Seq[[]byte]
}

// OnFullPolicy decides what happens when a Cuckoo filter rejects an insert
// with ErrFilterFull during build.
type OnFullPolicy uint8

const (
	// OnFullFail records the partition as failed. Siblings are unaffected.
	OnFullFail OnFullPolicy = iota
	// OnFullGrow rebuilds the partition's filter at double capacity and
	// re-inserts all keys, up to MaxGrowRetries times.
	OnFullGrow
)

// Policy selects the filter kind and sizing for every partition of a build.
//
// Rule of thumb: Cuckoo when the host needs to delete keys from filters
// later, Bloom otherwise (smaller for the same false-positive rate).
type Policy struct {
	// Kind is the filter implementation. KindBloom or KindCuckoo.
	Kind filter.Kind

	// TargetFPR is the Bloom false-positive rate at nominal load.
	// Ignored for Cuckoo. Default: 0.01.
	TargetFPR float64

	// FingerprintBits is the Cuckoo fingerprint width (4..16).
	// Ignored for Bloom. Default: 16.
	FingerprintBits uint32

	// SlotsPerBucket is the Cuckoo bucket width. Default: 4.
	SlotsPerBucket uint32

	// MaxKicks bounds the Cuckoo eviction chain. Default: 500.
	MaxKicks uint32

	// Headroom multiplies the counted key cardinality when sizing a filter.
	// Cuckoo filters insert reliably up to ~95% load, so a little slack
	// avoids growth retries. Default: 1.0 for Bloom, 1.05 for Cuckoo.
	Headroom float64

	// OnFull selects the reaction to ErrFilterFull. Cuckoo only.
	OnFull OnFullPolicy

	// MaxGrowRetries bounds OnFullGrow rebuilds per partition. Default: 2.
	MaxGrowRetries int
}

// DefaultPolicy returns a Bloom policy with a 1% target false-positive rate.
func DefaultPolicy() Policy {
	return Policy{
		Kind:      filter.KindBloom,
		TargetFPR: 0.01,
		Headroom:  1.0,
	}
}

// DefaultCuckooPolicy returns a Cuckoo policy with 16-bit fingerprints and
// capacity growth on overflow.
func DefaultCuckooPolicy() Policy {
	return Policy{
		Kind:            filter.KindCuckoo,
		FingerprintBits: 16,
		SlotsPerBucket:  4,
		MaxKicks:        500,
		Headroom:        1.05,
		OnFull:          OnFullGrow,
		MaxGrowRetries:  2,
	}
}

func (p Policy) withDefaults() Policy {
	if p.TargetFPR == 0 {
		p.TargetFPR = 0.01
	}
	if p.FingerprintBits == 0 {
		p.FingerprintBits = 16
	}
	if p.SlotsPerBucket == 0 {
		p.SlotsPerBucket = 4
	}
	if p.MaxKicks == 0 {
		p.MaxKicks = 500
	}
	if p.Headroom <= 0 {
		if p.Kind == filter.KindCuckoo {
			p.Headroom = 1.05
		} else {
			p.Headroom = 1.0
		}
	}
	if p.MaxGrowRetries <= 0 {
		p.MaxGrowRetries = 2
	}
	return p
}

func (p Policy) validate() error {
	switch p.Kind {
	case filter.KindBloom:
		if p.TargetFPR <= 0 || p.TargetFPR >= 1 {
			return &ErrInvalidParameters{Param: "TargetFPR", Reason: fmt.Sprintf("must be in (0, 1), got %g", p.TargetFPR)}
		}
	case filter.KindCuckoo:
		if p.FingerprintBits < 4 || p.FingerprintBits > 16 {
			return &ErrInvalidParameters{Param: "FingerprintBits", Reason: fmt.Sprintf("must be in [4, 16], got %d", p.FingerprintBits)}
		}
		if p.SlotsPerBucket == 0 {
			return &ErrInvalidParameters{Param: "SlotsPerBucket", Reason: "must be positive"}
		}
	default:
		return &ErrInvalidParameters{Param: "Kind", Reason: fmt.Sprintf("unsupported filter kind %s", p.Kind)}
	}
	if p.Headroom < 1.0 {
		return &ErrInvalidParameters{Param: "Headroom", Reason: fmt.Sprintf("must be >= 1.0, got %g", p.Headroom)}
	}
	return nil
}

// BuildReport is the per-partition outcome of a Build call. A partition is
// in exactly one of the two sets unless its ID was duplicated in the input,
// in which case the first occurrence is built and the duplicates are failed.
type BuildReport struct {
	Succeeded []PartitionID
	Failed    map[PartitionID]error
}

// Builder constructs a filter per partition and publishes the result as a
// new manifest version.
type Builder struct {
	store  blobstore.BlobStore
	policy Policy
	opts   options
}

// NewBuilder creates a Builder writing to the given store.
func NewBuilder(store blobstore.BlobStore, policy Policy, optFns ...Option) (*Builder, error) {
	policy = policy.withDefaults()
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Builder{
		store:  store,
		policy: policy,
		opts:   applyOptions(optFns),
	}, nil
}

// Build indexes the given partitions in parallel and publishes a manifest.
//
// Per-partition failures (unusable sizing, ErrFilterFull under OnFullFail,
// store write errors) land in the BuildReport and never affect sibling
// partitions. Build itself only returns an error when the context is
// canceled or the manifest cannot be published; in that case no new manifest
// version becomes visible.
func (b *Builder) Build(ctx context.Context, parts []Partition) (*Index, *BuildReport, error) {
	start := time.Now()

	report := &BuildReport{
		Failed: make(map[PartitionID]error),
	}

	type slot struct {
		entry *PartitionEntry
		err   error
	}
	slots := make([]slot, len(parts))

	seen := make(map[PartitionID]int, len(parts))
	build := make([]bool, len(parts))
	for i, part := range parts {
		if _, dup := seen[part.ID]; dup {
			slots[i].err = &ErrInvalidParameters{Param: "partition", Reason: fmt.Sprintf("duplicate partition id %q", part.ID)}
			continue
		}
		seen[part.ID] = i
		build[i] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	if b.opts.controller == nil {
		g.SetLimit(b.opts.parallelism)
	}

	for i, part := range parts {
		if !build[i] {
			continue
		}
		g.Go(func() error {
			if rc := b.opts.controller; rc != nil {
				if err := rc.AcquireWorker(gctx); err != nil {
					return err
				}
				defer rc.ReleaseWorker()
			}

			partStart := time.Now()
			entry, keys, err := b.buildPartition(gctx, part)
			b.opts.metricsCollector.RecordBuildPartition(keys, time.Since(partStart), err)

			var blobSize int
			if entry != nil {
				blobSize = int(entry.BlobSize)
			}
			b.opts.logger.LogBuildPartition(gctx, part.ID, keys, blobSize, err)

			if err != nil {
				// Cancellation aborts the whole build; anything else is a
				// per-partition outcome.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slots[i].err = err
				return nil
			}
			slots[i].entry = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Assemble the manifest in input order: entry position defines the
	// partition ordinal used by Prune bitmaps.
	entries := make([]PartitionEntry, 0, len(parts))
	for i, part := range parts {
		switch {
		case slots[i].entry != nil:
			entries = append(entries, *slots[i].entry)
			report.Succeeded = append(report.Succeeded, part.ID)
		case slots[i].err != nil:
			report.Failed[part.ID] = slots[i].err
		}
	}

	version, _, err := latestVersion(ctx, b.store, b.opts.commitStore)
	if err != nil {
		return nil, nil, err
	}

	m := &Manifest{
		Version:   version + 1,
		CreatedAt: time.Now().UTC(),
		Codec:     b.opts.codec.Name(),
		Entries:   entries,
	}

	_, err = publishManifest(ctx, b.store, b.opts.commitStore, b.opts.codec, m)
	b.opts.logger.LogManifest(ctx, "publish", m.Version, len(m.Entries), err)
	if err != nil {
		return nil, nil, fmt.Errorf("publish manifest: %w", err)
	}

	b.opts.logger.LogBuild(ctx, m.Version, len(report.Succeeded), len(report.Failed), time.Since(start))

	return newIndex(b.store, m, b.opts), report, nil
}

// buildPartition builds, serializes and uploads one partition's filter.
// The filter is exclusively owned by this goroutine; nothing here touches
// shared mutable state.
func (b *Builder) buildPartition(ctx context.Context, part Partition) (*PartitionEntry, uint64, error) {
	if part.Keys == nil {
		return nil, 0, &ErrInvalidParameters{Param: "Keys", Reason: "nil key sequence"}
	}

	var n uint64
	for range part.Keys {
		n++
	}

	capacity := uint64(math.Ceil(float64(max(n, 1)) * b.policy.Headroom))

	attempts := 1
	if b.policy.Kind == filter.KindCuckoo && b.policy.OnFull == OnFullGrow {
		attempts += b.policy.MaxGrowRetries
	}

	var (
		f       filter.Filter
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, n, err
		}

		var err error
		f, err = b.newFilter(capacity)
		if err != nil {
			return nil, n, err
		}

		if rc := b.opts.controller; rc != nil {
			if err := rc.AcquireMemory(ctx, int64(f.SizeBytes())); err != nil {
				return nil, n, err
			}
		}

		lastErr = insertAll(ctx, f, part.Keys)
		if lastErr == nil {
			break
		}

		if rc := b.opts.controller; rc != nil {
			rc.ReleaseMemory(int64(f.SizeBytes()))
		}
		f = nil

		if !errors.Is(lastErr, filter.ErrFilterFull) || b.policy.OnFull != OnFullGrow {
			return nil, n, lastErr
		}
		capacity *= 2
	}
	if f == nil {
		return nil, n, lastErr
	}
	if rc := b.opts.controller; rc != nil {
		defer rc.ReleaseMemory(int64(f.SizeBytes()))
	}

	blob, err := filter.Encode(f, b.opts.compression)
	if err != nil {
		return nil, n, err
	}

	blobName := filterBlobName(part.ID)
	if err := b.uploadBlob(ctx, blobName, blob); err != nil {
		return nil, n, fmt.Errorf("write %s: %w", blobName, err)
	}

	return &PartitionEntry{
		ID:       part.ID,
		Kind:     f.Kind(),
		Count:    f.Count(),
		BlobName: blobName,
		BlobSize: int64(len(blob)),
		Checksum: hash.CRC32C(blob),
		Params:   b.policy.params(),
	}, n, nil
}

func (b *Builder) newFilter(capacity uint64) (filter.Filter, error) {
	switch b.policy.Kind {
	case filter.KindBloom:
		return bloom.New(capacity, b.policy.TargetFPR)
	case filter.KindCuckoo:
		return cuckoo.New(capacity,
			cuckoo.WithFingerprintBits(b.policy.FingerprintBits),
			cuckoo.WithSlotsPerBucket(b.policy.SlotsPerBucket),
			cuckoo.WithMaxKicks(b.policy.MaxKicks),
		)
	default:
		return nil, &ErrInvalidParameters{Param: "Kind", Reason: fmt.Sprintf("unsupported filter kind %s", b.policy.Kind)}
	}
}

// insertAll feeds every key into the filter, checking for cancellation
// periodically so huge partitions stay responsive to ctx.
func insertAll(ctx context.Context, f filter.Filter, keys iter.Seq[[]byte]) error {
	var i int
	for key := range keys {
		if i&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		i++
		if err := f.Insert(key); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) uploadBlob(ctx context.Context, name string, blob []byte) error {
	rc := b.opts.controller
	if rc == nil {
		return b.store.Put(ctx, name, blob)
	}

	w, err := b.store.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := resource.NewRateLimitedWriter(ctx, w, rc).Write(blob); err != nil {
		return errors.Join(err, w.Close())
	}
	return w.Close()
}

func (p Policy) params() Params {
	switch p.Kind {
	case filter.KindCuckoo:
		return Params{
			FingerprintBits: p.FingerprintBits,
			SlotsPerBucket:  p.SlotsPerBucket,
			MaxKicks:        p.MaxKicks,
		}
	default:
		return Params{TargetFPR: p.TargetFPR}
	}
}

func filterBlobName(id PartitionID) string {
	return "filters/" + string(id) + ".filter"
}
