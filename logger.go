package annoy

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/annoy/distance"
)

// Logger wraps slog.Logger with index-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a text handler at info level writing to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		return NewTextLogger(slog.LevelInfo)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON records to stderr.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes key=value records to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return newTextLogger(os.Stderr, level)
}

func newTextLogger(w io.Writer, level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithIndex returns a logger whose records carry the index shape.
func (l *Logger) WithIndex(dimension int, metric distance.Metric) *Logger {
	return &Logger{Logger: l.Logger.With(
		slog.Int("dimension", dimension),
		slog.String("metric", metric.String()),
	)}
}

// outcome logs msg at level on success and at error level with err otherwise.
func (l *Logger) outcome(ctx context.Context, level slog.Level, msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		level = slog.LevelError
		msg += " failed"
		attrs = append(attrs, slog.Any("error", err))
	}
	l.LogAttrs(ctx, level, msg, attrs...)
}

// LogAdd logs an item insertion.
func (l *Logger) LogAdd(ctx context.Context, id, dimension int, err error) {
	attrs := []slog.Attr{slog.Int("id", id)}
	if err != nil {
		attrs = append(attrs, slog.Int("vector_dimension", dimension))
	}
	l.outcome(ctx, slog.LevelDebug, "add item", err, attrs...)
}

// LogBuild logs a forest build. On failure trees is the number of trees kept.
func (l *Logger) LogBuild(ctx context.Context, trees, nodes int, duration time.Duration, err error) {
	l.outcome(ctx, slog.LevelInfo, "build", err,
		slog.Int("trees", trees),
		slog.Int("nodes", nodes),
		slog.Duration("duration", duration),
	)
}

// LogSearch logs a query.
func (l *Logger) LogSearch(ctx context.Context, k, results, candidates int, err error) {
	l.outcome(ctx, slog.LevelDebug, "search", err,
		slog.Int("k", k),
		slog.Int("results", results),
		slog.Int("candidates", candidates),
	)
}

// LogSave logs a save, export or upload.
func (l *Logger) LogSave(ctx context.Context, target string, bytes int64, err error) {
	l.outcome(ctx, slog.LevelInfo, "save", err,
		slog.String("target", target),
		slog.Int64("bytes", bytes),
	)
}

// LogLoad logs a load. backing is where the arena lives afterwards.
func (l *Logger) LogLoad(ctx context.Context, source string, backing Backing, err error) {
	l.outcome(ctx, slog.LevelInfo, "load", err,
		slog.String("source", source),
		slog.String("backing", backing.String()),
	)
}
