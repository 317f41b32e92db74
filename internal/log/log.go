// Package log provides the logging infrastructure for DocuBot.
//
// It wraps log/slog with factory functions so components receive a logger
// via dependency injection instead of reaching for a global. The chat and
// ingestion pipelines log to the console; when a log file is configured the
// same records are teed to it, so a long-running `docubot serve` keeps an
// on-disk trail alongside terminal output.
//
// Usage:
//
//	logger, closeFn, err := log.New(log.Config{Level: slog.LevelDebug, File: cfg.LogFile})
//	defer closeFn()
//	store := knowledge.New(querier, embedder, logger.With("component", "knowledge"))
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger is a type alias for *slog.Logger. Components accept log.Logger as a
// dependency and may add context via With().
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo.
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format).
	JSON bool

	// AddSource adds source file information to log entries.
	AddSource bool

	// File, when non-empty, tees log output to the given file in addition
	// to stderr. The parent directory is created if missing.
	File string
}

// New creates a logger from cfg. The returned close function releases the
// log file handle (a no-op when no file is configured) and must be called
// at shutdown.
func New(cfg Config) (Logger, func() error, error) {
	w := io.Writer(os.Stderr)
	closeFn := func() error { return nil }

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = f.Close
	}

	return NewWithWriter(w, cfg), closeFn, nil
}

// NewWithWriter creates a logger that writes to the specified writer.
// Useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Test helper only; using
// it in production silently drops logs.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a textual level ("debug", "info", "warn", "error") to a
// slog.Level. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
