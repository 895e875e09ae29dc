package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/clog"
)

type contextKey struct{}

var (
	loggerKey       = contextKey{}
	defaultLogger   *slog.Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New("info", os.Stderr)
}

// Format selects how records are rendered
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

type options struct {
	format Format
}

type Option func(*options)

// WithFormat switches between the colored console handler and JSON lines
func WithFormat(f Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// ParseLevel converts a string level to slog.Level.
// Accepts "debug", "info", "warn", "warning", "error" (case-insensitive); anything else is info.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New creates a new slog.Logger writing to w at the given level
func New(level string, w io.Writer, opts ...Option) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	o := &options{format: FormatConsole}
	for _, opt := range opts {
		opt(o)
	}

	lv, ok := ParseLevel(level)

	var handler slog.Handler
	switch o.format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})
	default:
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(lv),
			clog.WithTimeFmt("15:04:05"),
			clog.WithSource(false),
			clog.WithAttrHook(clog.GoerrHook),
		)
	}

	logger := slog.New(handler)
	if !ok {
		logger.Warn("invalid log level, falling back to info", "level", level)
	}
	return logger
}

// Default returns the default logger
func Default() *slog.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(logger *slog.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// With returns a new context with the logger attached
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// From retrieves the logger from the context, or the default logger
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return Default()
}
