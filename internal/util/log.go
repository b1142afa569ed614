// Package util provides shared utility functions for logging, retries and
// rate limiting.
package util

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"stockticker/internal/config"
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Defaults to info if the level string is not recognised.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger from the logging configuration. When
// cfg.File is set output goes to a size-rotated file instead of stdout, which
// keeps terminal UIs clean.
func NewLogger(cfg config.Logging) *slog.Logger {
	var w io.Writer = os.Stdout
	if cfg.File != "" {
		w = NewRotatingWriter(cfg.File)
	}
	return NewLoggerTo(w, cfg)
}

// NewLoggerTo is NewLogger with an explicit destination.
func NewLoggerTo(w io.Writer, cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// NewRotatingWriter returns a lumberjack writer that rotates path at 20 MB
// and keeps three compressed backups.
func NewRotatingWriter(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
}

// SetDefault configures the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
