// Package logging provides the structured logging used across the engine,
// grounded on the teacher pack's bencoepp-bib/internal/logger: slog handlers
// fronting a rotating lumberjack sink for long-running components (the
// background worker) and stderr otherwise (cmd/codequeryd's own logger).
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures a rotating file sink.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a slog.Logger that writes JSON lines to stderr.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewRotating builds a slog.Logger writing to a rotating file, for
// long-running components such as the background worker (worker.log).
func NewRotating(cfg FileConfig, level slog.Level) (*slog.Logger, io.Closer) {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: level})), lj
}

// ParseLevel converts a case-insensitive level name to a slog.Level,
// defaulting to Info on an unrecognized value.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
