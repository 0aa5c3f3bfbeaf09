package skipidx

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with skipidx-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPartition adds a partition field to the logger.
func (l *Logger) WithPartition(id PartitionID) *Logger {
	return &Logger{
		Logger: l.Logger.With("partition", string(id)),
	}
}

// WithVersion adds a manifest version field to the logger.
func (l *Logger) WithVersion(version uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("version", version),
	}
}

// LogBuildPartition logs the outcome of a single partition build.
func (l *Logger) LogBuildPartition(ctx context.Context, id PartitionID, keys uint64, blobSize int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "partition build failed",
			"partition", string(id),
			"keys", keys,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "partition build completed",
			"partition", string(id),
			"keys", keys,
			"blob_size", blobSize,
		)
	}
}

// LogBuild logs a completed build run.
func (l *Logger) LogBuild(ctx context.Context, version uint64, succeeded, failed int, took time.Duration) {
	if failed > 0 {
		l.WarnContext(ctx, "index build completed with failures",
			"version", version,
			"succeeded", succeeded,
			"failed", failed,
			"took", took,
		)
	} else {
		l.InfoContext(ctx, "index build completed",
			"version", version,
			"partitions", succeeded,
			"took", took,
		)
	}
}

// LogQuery logs a single-partition membership query.
func (l *Logger) LogQuery(ctx context.Context, id PartitionID, result Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"partition", string(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"partition", string(id),
			"result", result.String(),
		)
	}
}

// LogPrune logs a prune pass over all partitions.
func (l *Logger) LogPrune(ctx context.Context, candidates, total int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "prune failed",
			"total", total,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "prune completed",
			"candidates", candidates,
			"total", total,
			"skipped", total-candidates,
		)
	}
}

// LogManifest logs a manifest load or publish.
func (l *Logger) LogManifest(ctx context.Context, op string, version uint64, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "manifest "+op+" failed",
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "manifest "+op+" completed",
			"version", version,
			"entries", entries,
		)
	}
}
