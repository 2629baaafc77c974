// Package log provides the logging infrastructure for phonewise.
//
// Loggers are injected via constructors, never pulled from globals. Components
// add context with logger.With("component", ...). Tests use NewNop or
// NewWithWriter with a buffer.
package log

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a type alias for *slog.Logger so components depend on the
// standard library type directly.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool

	// File, when non-empty, sends output to a size-rotated log file instead
	// of stderr.
	File string
}

// Rotation limits for file output.
const (
	maxFileSizeMB = 10
	maxBackups    = 3
	maxAgeDays    = 28
)

// New creates a logger from cfg. Output goes to stderr, or to a rotated file
// when cfg.File is set.
func New(cfg Config) Logger {
	if cfg.File != "" {
		return NewWithWriter(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}, cfg)
	}
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w.
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

// NewNop creates a logger that discards all output. Test use only.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
