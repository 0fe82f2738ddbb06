package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Options controls how the global logger is built.
type Options struct {
	Debug  bool
	Format string // "text" or "json"
	Output io.Writer
}

// Init initializes the global logger. Only the first call has an effect.
func Init(opts Options) {
	once.Do(func() {
		defaultLogger = newLogger(opts)
		slog.SetDefault(defaultLogger)
	})
}

func newLogger(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
		// Add source file information if in debug mode
		AddSource: opts.Debug,
	}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

func get() *slog.Logger {
	// No-op once the entrypoint has called Init.
	Init(Options{Debug: os.Getenv("DEBUG") == "true"})
	return defaultLogger
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn logs at Warn level.
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// Fatal logs at Error level and exits with the given code.
func Fatal(code int, msg string, args ...any) {
	get().Error(msg, args...)
	os.Exit(code)
}

// With returns a new logger with the given attributes.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}
