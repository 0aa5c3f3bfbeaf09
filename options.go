package skipidx

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/skipidx/blobstore"
	"github.com/hupe1980/skipidx/codec"
	"github.com/hupe1980/skipidx/filter"
	"github.com/hupe1980/skipidx/resource"
)

type options struct {
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	parallelism      int
	cacheBytes       int64
	controller       *resource.Controller
	commitStore      blobstore.CommitStore
	compression      filter.Compression
}

// Option configures Builder and Open behavior.
type Option func(*options)

// WithCodec configures the codec used for manifest serialization.
//
// If nil is passed, codec.Default is used. On load, the codec named in the
// manifest wins; this option only selects the codec for newly written
// manifests.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging for build and query operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring.
//
// Example with BasicMetricsCollector:
//
//	metrics := &skipidx.BasicMetricsCollector{}
//	idx, _ := skipidx.Open(ctx, store, skipidx.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithParallelism bounds the number of partitions built or probed
// concurrently. Defaults to GOMAXPROCS. Ignored for builds when a resource
// controller is set; the controller's worker slots take precedence.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithFilterCache bounds the decoded-filter cache in bytes.
// Defaults to 64MB. Set 0 to disable caching.
func WithFilterCache(capacityBytes int64) Option {
	return func(o *options) {
		o.cacheBytes = capacityBytes
	}
}

// WithResourceController attaches a shared resource controller. Builds then
// draw worker slots, memory reservations and IO budget from it, so several
// indexes can share one global limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithCommitStore attaches an external commit arbiter (e.g. the DynamoDB
// commit store) for manifest publication. Without one, the CURRENT pointer
// blob in the blob store is used, which is safe only for a single writer.
func WithCommitStore(cs blobstore.CommitStore) Option {
	return func(o *options) {
		o.commitStore = cs
	}
}

// WithCompression selects the envelope compression for filter blobs written
// by Build. Default: none. Decoding is self-describing, so readers need no
// matching option.
func WithCompression(c filter.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		parallelism:      runtime.GOMAXPROCS(0),
		cacheBytes:       64 << 20,
		compression:      filter.CompressionNone,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
