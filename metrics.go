package skipidx

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordBuildPartition is called after each partition build attempt.
	// keys is the number of keys inserted, duration the build time,
	// err is nil if successful.
	RecordBuildPartition(keys uint64, duration time.Duration, err error)

	// RecordQuery is called after each single-partition membership query.
	RecordQuery(result Result, duration time.Duration, err error)

	// RecordPrune is called after each prune pass.
	// candidates is the number of partitions left to scan, total the number
	// of partitions consulted.
	RecordPrune(candidates, total int, duration time.Duration, err error)

	// RecordFilterLoad is called when a filter blob is fetched and decoded
	// (a cache miss on the query path).
	RecordFilterLoad(blobSize int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuildPartition(uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(Result, time.Duration, error)          {}
func (NoopMetricsCollector) RecordPrune(int, int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordFilterLoad(int, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildKeys        atomic.Int64
	BuildTotalNanos  atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryAbsent      atomic.Int64
	QueryTotalNanos  atomic.Int64
	PruneCount       atomic.Int64
	PruneErrors      atomic.Int64
	PruneCandidates  atomic.Int64
	PrunePartitions  atomic.Int64
	FilterLoads      atomic.Int64
	FilterLoadErrors atomic.Int64
	FilterLoadBytes  atomic.Int64
}

// RecordBuildPartition implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuildPartition(keys uint64, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildKeys.Add(int64(keys))
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(result Result, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
	if result == DefinitelyAbsent {
		b.QueryAbsent.Add(1)
	}
}

// RecordPrune implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrune(candidates, total int, duration time.Duration, err error) {
	b.PruneCount.Add(1)
	b.PruneCandidates.Add(int64(candidates))
	b.PrunePartitions.Add(int64(total))
	if err != nil {
		b.PruneErrors.Add(1)
	}
}

// RecordFilterLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilterLoad(blobSize int, duration time.Duration, err error) {
	b.FilterLoads.Add(1)
	b.FilterLoadBytes.Add(int64(blobSize))
	if err != nil {
		b.FilterLoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildKeys:       b.BuildKeys.Load(),
		BuildAvgNanos:   avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryAbsent:     b.QueryAbsent.Load(),
		QueryAvgNanos:   avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		PruneCount:      b.PruneCount.Load(),
		PruneErrors:     b.PruneErrors.Load(),
		PruneCandidates: b.PruneCandidates.Load(),
		PrunePartitions: b.PrunePartitions.Load(),
		FilterLoads:     b.FilterLoads.Load(),
		FilterLoadBytes: b.FilterLoadBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	BuildKeys       int64
	BuildAvgNanos   int64
	QueryCount      int64
	QueryErrors     int64
	QueryAbsent     int64
	QueryAvgNanos   int64
	PruneCount      int64
	PruneErrors     int64
	PruneCandidates int64
	PrunePartitions int64
	FilterLoads     int64
	FilterLoadBytes int64
}
