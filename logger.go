package gtstore

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with consistent field names for matrix and store
// operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at Info.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithTaxon adds a taxon field to the logger.
func (l *Logger) WithTaxon(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("taxon", name),
	}
}

// WithContainer adds a container field to the logger.
func (l *Logger) WithContainer(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("container", name),
	}
}

// LogBuild logs a bit-matrix build.
func (l *Logger) LogBuild(ctx context.Context, taxa, sites int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"taxa", taxa,
			"sites", sites,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"taxa", taxa,
			"sites", sites,
			"duration", duration,
		)
	}
}

// LogRebuild logs a store rebuild.
func (l *Logger) LogRebuild(ctx context.Context, taxa int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "rebuild failed",
			"taxa", taxa,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "rebuild completed",
			"taxa", taxa,
			"duration", duration,
		)
	}
}

// LogMutation logs a taxon add, rename or removal.
func (l *Logger) LogMutation(ctx context.Context, op, taxon string, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"taxon", taxon,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"taxon", taxon,
		)
	}
}
