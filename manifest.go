package skipidx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/skipidx/blobstore"
	"github.com/hupe1980/skipidx/codec"
	"github.com/hupe1980/skipidx/filter"
)

// PartitionID identifies a partition within one index. IDs are host-assigned
// opaque strings, unique within a build.
type PartitionID string

// Params records the sizing knobs a filter was built with. Informative for
// operators and rebuild tooling; not needed to decode the filter blob, which
// is self-describing.
type Params struct {
	TargetFPR       float64 `json:"target_fpr,omitempty"`
	FingerprintBits uint32  `json:"fingerprint_bits,omitempty"`
	SlotsPerBucket  uint32  `json:"slots_per_bucket,omitempty"`
	MaxKicks        uint32  `json:"max_kicks,omitempty"`
}

// PartitionEntry describes one partition's filter blob in the manifest.
type PartitionEntry struct {
	ID       PartitionID `json:"id"`
	Kind     filter.Kind `json:"kind"`
	Count    uint64      `json:"count"`
	BlobName string      `json:"blob_name"`
	BlobSize int64       `json:"blob_size"`
	Checksum uint32      `json:"checksum"` // CRC32C of the encoded blob
	Params   Params      `json:"params"`
}

// Manifest is the versioned catalog of an index. Its serialized form is part
// of the contract with the host system: entry order defines the partition
// ordinals used by Prune bitmaps.
type Manifest struct {
	Version   uint64           `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	Codec     string           `json:"codec"`
	Entries   []PartitionEntry `json:"entries"`
}

const (
	manifestPrefix  = "MANIFEST-"
	currentBlobName = "CURRENT"
)

func manifestBlobName(version uint64) string {
	return fmt.Sprintf("%s%06d", manifestPrefix, version)
}

func parseManifestVersion(name string) (uint64, error) {
	s := strings.TrimPrefix(name, manifestPrefix)
	if s == name {
		return 0, fmt.Errorf("%w: manifest name %q", ErrCorruptData, name)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: manifest name %q: %v", ErrCorruptData, name, err)
	}
	return v, nil
}

// latestVersion returns the highest committed manifest version, or 0 when
// nothing was published yet.
func latestVersion(ctx context.Context, store blobstore.BlobStore, commit blobstore.CommitStore) (uint64, string, error) {
	if commit != nil {
		version, name, err := commit.Latest(ctx)
		if errors.Is(err, blobstore.ErrNotFound) {
			return 0, "", nil
		}
		return version, name, err
	}

	data, err := blobstore.ReadAll(ctx, store, currentBlobName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}

	name := strings.TrimSpace(string(data))
	version, err := parseManifestVersion(name)
	if err != nil {
		return 0, "", err
	}
	return version, name, nil
}

// publishManifest writes the manifest blob and advances the commit pointer.
// With a commit store the pointer update is a conditional write, so
// concurrent publishers of the same version race safely; the plain CURRENT
// blob is single-writer only.
func publishManifest(ctx context.Context, store blobstore.BlobStore, commit blobstore.CommitStore, c codec.Codec, m *Manifest) (string, error) {
	data, err := c.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	name := manifestBlobName(m.Version)
	if err := store.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", name, err)
	}

	if commit != nil {
		if err := commit.Commit(ctx, m.Version, name); err != nil {
			return "", err
		}
		return name, nil
	}

	if err := store.Put(ctx, currentBlobName, []byte(name)); err != nil {
		return "", fmt.Errorf("update %s: %w", currentBlobName, err)
	}
	return name, nil
}

// loadLatestManifest resolves the current manifest and decodes it.
func loadLatestManifest(ctx context.Context, store blobstore.BlobStore, commit blobstore.CommitStore, c codec.Codec) (*Manifest, error) {
	version, name, err := latestVersion(ctx, store, commit)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, ErrNoManifest
	}

	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: committed manifest %s missing", ErrCorruptData, name)
		}
		return nil, err
	}

	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest %s: %v", ErrCorruptData, name, err)
	}
	if m.Version != version {
		return nil, fmt.Errorf("%w: manifest %s declares version %d, committed as %d", ErrCorruptData, name, m.Version, version)
	}

	return &m, nil
}
