package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects how records are encoded.
type Format string

const (
	// FormatPretty is colorized charmbracelet/log output for terminals.
	FormatPretty Format = "pretty"
	// FormatText is slog's key=value text.
	FormatText Format = "text"
	// FormatJSON is one JSON object per record.
	FormatJSON Format = "json"
)

// ParseFormat resolves a --log-format value. Case is ignored.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPretty, FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q, want pretty, text or json", s)
	}
}

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithFormat sets the record encoding. The default is FormatText.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithWriter replaces the console writer, os.Stderr by default.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.console = w
	}
}

// WithLogFile also appends every record to path, creating its directory.
// Pretty output is written to the file without colors.
func WithLogFile(path string) Option {
	return func(c *config) {
		c.file = path
	}
}
