// Package logger builds the zerolog loggers used by the command line tool
// and handed to pools through pool.WithLogger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Field names shared by every component.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldWorker    = "worker"
	FieldTask      = "task"
)

// New returns a logger configured by cfg and the closer of its output.
// Unknown levels fall back to info. The closer is a no-op for stdout and
// stderr and closes the log file otherwise.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	out, closer, err := outputWriter(cfg.Output)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	var zl zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.TimeOnly,
		})
	} else {
		zl = zerolog.New(out)
	}

	zl = zl.Level(level)
	if cfg.Timestamp {
		zl = zl.With().Timestamp().Logger()
	}
	return zl, closer, nil
}

// WithComponent tags l with a component name.
func WithComponent(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func outputWriter(output string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log output: %w", err)
		}
		return f, f, nil
	}
}
