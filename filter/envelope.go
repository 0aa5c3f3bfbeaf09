package filter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/skipidx/internal/hash"
)

// Compression selects the envelope payload compression.
type Compression uint8

const (
	// CompressionNone stores the payload raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, hot read paths).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd block compression (better ratio, cold blobs).
	CompressionZSTD Compression = 2
)

// Envelope layout, all fields little-endian:
//
//	offset  size  field
//	0       4     magic "SKPX" (0x53 0x4B 0x50 0x58)
//	4       2     format version (currently 1)
//	6       1     kind
//	7       1     compression
//	8       4     uncompressed payload length
//	12      4     stored payload length
//	16      n     payload (possibly compressed)
//	16+n    4     CRC32C over bytes [0, 16+n)
const (
	envelopeMagic   = 0x5850_4B53 // "SKPX" when read little-endian
	envelopeVersion = 1
	headerSize      = 16
	trailerSize     = 4
)

// zstd encoder/decoder are concurrency-safe with EncodeAll/DecodeAll and
// reused process-wide.
var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
)

func zstdInit() {
	zstdOnce.Do(func() {
		zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		zstdDec, _ = zstd.NewReader(nil)
	})
}

// Encode serializes f into a self-describing blob.
//
// If the compressed payload would not be at least 10% smaller than the raw
// payload, the blob is stored uncompressed regardless of c. Decode handles
// both cases transparently.
func Encode(f Filter, c Compression) ([]byte, error) {
	var payload bytes.Buffer
	if _, err := f.WriteTo(&payload); err != nil {
		return nil, fmt.Errorf("serialize %s filter: %w", f.Kind(), err)
	}

	raw := payload.Bytes()
	stored := raw

	switch c {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n > 0 && float64(n) <= float64(len(raw))*0.9 {
			stored = buf[:n]
		} else {
			c = CompressionNone
		}
	case CompressionZSTD:
		zstdInit()
		buf := zstdEnc.EncodeAll(raw, nil)
		if float64(len(buf)) <= float64(len(raw))*0.9 {
			stored = buf
		} else {
			c = CompressionNone
		}
	default:
		return nil, &ErrInvalidParameters{Param: "compression", Reason: fmt.Sprintf("unknown compression %d", c)}
	}

	blob := make([]byte, headerSize+len(stored)+trailerSize)
	binary.LittleEndian.PutUint32(blob[0:4], envelopeMagic)
	binary.LittleEndian.PutUint16(blob[4:6], envelopeVersion)
	blob[6] = byte(f.Kind())
	blob[7] = byte(c)
	binary.LittleEndian.PutUint32(blob[8:12], uint32(len(raw)))
	binary.LittleEndian.PutUint32(blob[12:16], uint32(len(stored)))
	copy(blob[headerSize:], stored)

	sum := hash.CRC32C(blob[:headerSize+len(stored)])
	binary.LittleEndian.PutUint32(blob[headerSize+len(stored):], sum)

	return blob, nil
}

// Decode reconstructs a filter from an Encode blob.
// Any structural mismatch returns an error satisfying
// errors.Is(err, ErrCorruptData).
func Decode(blob []byte) (Filter, error) {
	kind, payload, err := unwrap(blob)
	if err != nil {
		return nil, err
	}

	loader, err := loaderFor(kind)
	if err != nil {
		return nil, err
	}

	f, err := loader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if f.Kind() != kind {
		return nil, fmt.Errorf("%w: loader for %s produced %s", ErrCorruptData, kind, f.Kind())
	}
	return f, nil
}

// Sniff returns the kind tag of an encoded blob without decoding the payload.
func Sniff(blob []byte) (Kind, error) {
	if len(blob) < headerSize+trailerSize {
		return KindUnknown, fmt.Errorf("%w: blob of %d bytes is shorter than envelope", ErrCorruptData, len(blob))
	}
	if binary.LittleEndian.Uint32(blob[0:4]) != envelopeMagic {
		return KindUnknown, fmt.Errorf("%w: bad magic 0x%08x", ErrCorruptData, binary.LittleEndian.Uint32(blob[0:4]))
	}
	return Kind(blob[6]), nil
}

// unwrap validates the envelope and returns the decompressed payload.
func unwrap(blob []byte) (Kind, []byte, error) {
	if len(blob) < headerSize+trailerSize {
		return KindUnknown, nil, fmt.Errorf("%w: blob of %d bytes is shorter than envelope", ErrCorruptData, len(blob))
	}

	magic := binary.LittleEndian.Uint32(blob[0:4])
	if magic != envelopeMagic {
		return KindUnknown, nil, fmt.Errorf("%w: bad magic 0x%08x", ErrCorruptData, magic)
	}
	version := binary.LittleEndian.Uint16(blob[4:6])
	if version != envelopeVersion {
		return KindUnknown, nil, fmt.Errorf("%w: unsupported envelope version %d", ErrCorruptData, version)
	}

	kind := Kind(blob[6])
	comp := Compression(blob[7])
	rawLen := binary.LittleEndian.Uint32(blob[8:12])
	storedLen := binary.LittleEndian.Uint32(blob[12:16])

	if int(storedLen) != len(blob)-headerSize-trailerSize {
		return KindUnknown, nil, fmt.Errorf("%w: stored length %d disagrees with blob size %d", ErrCorruptData, storedLen, len(blob))
	}

	body := blob[:headerSize+int(storedLen)]
	want := binary.LittleEndian.Uint32(blob[headerSize+int(storedLen):])
	if got := hash.CRC32C(body); got != want {
		return KindUnknown, nil, fmt.Errorf("%w: checksum mismatch (got 0x%08x, want 0x%08x)", ErrCorruptData, got, want)
	}

	stored := blob[headerSize : headerSize+int(storedLen)]

	var payload []byte
	switch comp {
	case CompressionNone:
		if rawLen != storedLen {
			return KindUnknown, nil, fmt.Errorf("%w: uncompressed blob with raw length %d != stored length %d", ErrCorruptData, rawLen, storedLen)
		}
		payload = stored
	case CompressionLZ4:
		payload = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, payload)
		if err != nil {
			return KindUnknown, nil, fmt.Errorf("%w: lz4 decompress: %v", ErrCorruptData, err)
		}
		if uint32(n) != rawLen {
			return KindUnknown, nil, fmt.Errorf("%w: lz4 payload decompressed to %d bytes, want %d", ErrCorruptData, n, rawLen)
		}
	case CompressionZSTD:
		zstdInit()
		out, err := zstdDec.DecodeAll(stored, make([]byte, 0, rawLen))
		if err != nil {
			return KindUnknown, nil, fmt.Errorf("%w: zstd decompress: %v", ErrCorruptData, err)
		}
		if uint32(len(out)) != rawLen {
			return KindUnknown, nil, fmt.Errorf("%w: zstd payload decompressed to %d bytes, want %d", ErrCorruptData, len(out), rawLen)
		}
		payload = out
	default:
		return KindUnknown, nil, fmt.Errorf("%w: unknown compression %d", ErrCorruptData, comp)
	}

	return kind, payload, nil
}
