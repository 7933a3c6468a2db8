package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	prefix     = "report_"
	timeLayout = "20060102T150405.000000000"
)

// ErrNotFound is returned by Load for unknown report names.
var ErrNotFound = errors.New("report not found")

// Writer stores reports in a directory. Names embed a UTC timestamp and are
// strictly increasing across calls, so lexical order is chronological.
// Existing files are never overwritten.
type Writer struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a writer for dir. New names sort after any report
// already in dir, even when the clock is behind the newest of them.
func NewWriter(dir string, logger *slog.Logger, opts ...Option) *Writer {
	w := &Writer{dir: dir, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	names, err := w.List()
	if err != nil {
		logger.Warn("failed to list existing reports", "dir", dir, "error", err)
	}
	if len(names) > 0 {
		w.last, _ = parseName(names[len(names)-1])
	}
	return w
}

// Dir returns the reports directory.
func (w *Writer) Dir() string { return w.dir }

// FileName returns the report file name for t.
func FileName(t time.Time) string {
	return prefix + t.UTC().Format(timeLayout) + "Z.json"
}

func (w *Writer) next() time.Time {
	t := w.now().UTC()
	if !t.After(w.last) {
		t = w.last.Add(time.Nanosecond)
	}
	w.last = t
	return t
}

// Write stores r as JSON and Markdown and returns the JSON file path.
func (w *Writer) Write(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reports dir: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		path := filepath.Join(w.dir, FileName(w.next()))
		err := createExclusive(path, data)
		if errors.Is(err, fs.ErrExist) {
			// Written by another process in the same nanosecond.
			continue
		}
		if err != nil {
			return "", err
		}

		md := strings.TrimSuffix(path, ".json") + ".md"
		if err := createExclusive(md, []byte(r.Markdown())); err != nil {
			w.logger.Warn("failed to write markdown report", "path", md, "error", err)
		}
		w.logger.Info("report written", "path", path, "session_id", r.SessionID)
		return path, nil
	}
}

func createExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// List returns report names in chronological order.
func (w *Writer) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading reports dir: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && validName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Load reads the named report.
func (w *Writer) Load(name string) (*Report, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", name, err)
	}
	return &r, nil
}

func validName(name string) bool {
	_, ok := parseName(name)
	return ok
}

func parseName(name string) (time.Time, bool) {
	if filepath.Base(name) != name || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "Z.json") {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), "Z.json")
	t, err := time.Parse(timeLayout, stamp)
	return t, err == nil
}
