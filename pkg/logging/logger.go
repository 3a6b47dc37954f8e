// Package logging configures the process-wide structured logger.
//
// The gateway logs through log/slog everywhere; this package turns the
// logging section of the configuration file into an installed
// slog.Default. Output is JSON in production and text for local
// development, selected by config. Attribute values that look like
// provider credentials are redacted before they reach the sink.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format is the log output format.
type Format string

const (
	// FormatJSON emits one JSON object per line.
	FormatJSON Format = "json"
	// FormatText emits logfmt-style key=value lines.
	FormatText Format = "text"
)

// Config describes how the process logger should behave.
type Config struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	Level string

	// Format selects the handler ("json" or "text").
	Format string

	// Output selects the sink ("stdout" or "stderr").
	Output string

	// AddSource includes file:line in every record.
	AddSource bool

	// Writer overrides Output when non-nil. Used by tests.
	Writer io.Writer
}

// Setup builds a logger from cfg and installs it as slog.Default.
// Everything that logs through slog.Default().With(...) picks up the
// new handler immediately.
func Setup(cfg Config) (*slog.Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// New builds a logger from cfg without touching the process default.
func New(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	writer := cfg.Writer
	if writer == nil {
		switch cfg.Output {
		case "", "stdout":
			writer = os.Stdout
		case "stderr":
			writer = os.Stderr
		default:
			return nil, fmt.Errorf("unknown log output: %q", cfg.Output)
		}
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "", string(FormatJSON):
		handler = slog.NewJSONHandler(writer, opts)
	case string(FormatText):
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %q", cfg.Format)
	}

	return slog.New(handler), nil
}

// parseLevel maps a level name to a slog.Level. Empty means info.
func parseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", name)
	}
}
