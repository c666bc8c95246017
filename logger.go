package pullback

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with domain-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithSamples adds a sample-count field to the logger.
func (l *Logger) WithSamples(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("samples", n),
	}
}

// WithIteration adds an iteration field to the logger.
func (l *Logger) WithIteration(iteration int) *Logger {
	return &Logger{
		Logger: l.Logger.With("iteration", iteration),
	}
}

// WithRank adds a worker-rank field to the logger.
func (l *Logger) WithRank(rank int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank),
	}
}

// LogGenerate logs a sample-generation operation.
func (l *Logger) LogGenerate(ctx context.Context, n, dim int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sample generation failed",
			"samples", n,
			"dimension", dim,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "sample generation completed",
			"samples", n,
			"dimension", dim,
		)
	}
}

// LogVolumeEstimate logs a cell-volume estimation operation.
func (l *Logger) LogVolumeEstimate(ctx context.Context, cells, emulated int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "volume estimation failed",
			"cells", cells,
			"emulated", emulated,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "volume estimation completed",
			"cells", cells,
			"emulated", emulated,
		)
	}
}

// LogUpdate logs a data-consistent update step.
func (l *Logger) LogUpdate(ctx context.Context, iteration int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "data-consistent update failed",
			"iteration", iteration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "data-consistent update completed",
			"iteration", iteration,
		)
	}
}

// LogCompare logs a measure-comparison operation.
func (l *Logger) LogCompare(ctx context.Context, emulated int, value float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "comparison failed",
			"emulated", emulated,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "comparison completed",
			"emulated", emulated,
			"value", value,
		)
	}
}
