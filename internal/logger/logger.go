// Package logger builds the slog loggers used across the pipeline.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level   slog.Level
	format  Format
	console io.Writer
	file    string
}

// New creates a *slog.Logger. Without options it writes text records at Info
// level to stderr, keeping stdout free for command output. A log file that
// cannot be opened is reported on the console and skipped.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, format: FormatText, console: os.Stderr}
	for _, opt := range opts {
		opt(c)
	}

	w := c.console
	var fileErr error
	if c.file != "" {
		f, err := openLogFile(c.file)
		if err != nil {
			fileErr = err
		} else {
			w = io.MultiWriter(c.console, f)
		}
	}

	log := slog.New(c.handler(w))
	if fileErr != nil {
		log.Warn("log file disabled", "path", c.file, "error", fileErr)
	}
	return log
}

func (c *config) handler(w io.Writer) slog.Handler {
	switch c.format {
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.level})
	case FormatPretty:
		level := charmlog.InfoLevel
		if c.level <= slog.LevelDebug {
			level = charmlog.DebugLevel
		}
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           level,
			ReportTimestamp: true,
		})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.level})
	}
}

// The file stays open for the life of the process.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
