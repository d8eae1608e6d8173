// Package logger builds the process logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a zerolog.Logger configured from cfg. An empty Level means
// info and an empty Output means stderr, keeping stdout free for rendering.
// The caller owns the returned Closer; it releases the log file when Output
// names one and is a no-op for the standard streams.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	lvl := cfg.Level
	if lvl == "" {
		lvl = "info"
	}
	level, err := zerolog.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("invalid log level: %w", err)
	}

	switch cfg.Output {
	case "", "stderr":
		return NewWithWriter(cfg, os.Stderr, level), nopCloser{}, nil
	case "stdout":
		return NewWithWriter(cfg, os.Stdout, level), nopCloser{}, nil
	}
	file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("could not open log file: %w", err)
	}
	return NewWithWriter(cfg, file, level), file, nil
}

// NewWithWriter builds a logger on an explicit writer.
func NewWithWriter(cfg Config, w io.Writer, level zerolog.Level) zerolog.Logger {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: cfg.TimeFormat}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "candleview").
		Logger()
}
