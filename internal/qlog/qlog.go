// Package qlog provides the structured console logger used by
// cmd/sqlcompile.
package qlog

import (
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Config holds the logger's runtime configuration.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text", "json"
	// Buffer, if > 0, keeps that many recent formatted log lines in memory
	// for introspection (e.g. a future "recent activity" CLI subcommand).
	Buffer int
}

// DefaultConfig returns sqlcompile's default logging configuration.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "text", Buffer: 200}
}

// ParseLevel converts a string level to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	defaultLogger *slog.Logger
	defaultBuffer *RingBuffer
	mu            sync.RWMutex
)

// Init installs the global logger for the process, writing to w (typically
// os.Stderr) with the given config.
func Init(w io.Writer, cfg *Config) {
	mu.Lock()
	defer mu.Unlock()

	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if cfg.Buffer > 0 {
		defaultBuffer = NewRingBuffer(cfg.Buffer)
		handler = NewBufferHandler(handler, defaultBuffer)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// Logger returns the current global logger, defaulting to slog.Default()
// before Init is called.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

// RecentLines returns the last n buffered log lines, or nil if Init was
// never called with Buffer > 0.
func RecentLines(n int) []string {
	mu.RLock()
	defer mu.RUnlock()
	if defaultBuffer == nil {
		return nil
	}
	return defaultBuffer.Lines(n)
}

// RecentLinesForTable returns the last n buffered log lines whose compile
// request referenced table, or nil if Init was never called with Buffer > 0.
func RecentLinesForTable(table string, n int) []string {
	mu.RLock()
	defer mu.RUnlock()
	if defaultBuffer == nil {
		return nil
	}
	return defaultBuffer.LinesForTable(table, n)
}

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

func With(args ...any) *slog.Logger { return Logger().With(args...) }
