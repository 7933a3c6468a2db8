// Package loader extracts page text from PDF files.
package loader

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/s76354m/AxisRAG/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// PDFLoader loads PDF documents from the local filesystem.
type PDFLoader struct {
	logger *slog.Logger
}

// NewPDFLoader creates a loader that logs per-page extraction problems to logger.
func NewPDFLoader(logger *slog.Logger) *PDFLoader {
	return &PDFLoader{logger: logger}
}

// DocumentID derives a stable document ID from an absolute path, so loading
// the same file twice yields the same ID.
func DocumentID(absPath string) string {
	h := sha1.Sum([]byte(absPath))
	return hex.EncodeToString(h[:8])
}

// Load reads the PDF at path. Every failure wraps domain.ErrDocumentLoad.
func (l *PDFLoader) Load(ctx context.Context, path string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: resolving %s: %w", domain.ErrDocumentLoad, path, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrDocumentLoad, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrDocumentLoad, err)
	}
	if info.IsDir() {
		return domain.Document{}, fmt.Errorf("%w: %s is a directory", domain.ErrDocumentLoad, path)
	}

	pages, err := l.extract(f, info.Size())
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %w", domain.ErrDocumentLoad, path, err)
	}

	doc := assemble(DocumentID(abs), abs, pages)
	if strings.TrimSpace(doc.Text) == "" {
		return domain.Document{}, fmt.Errorf("%w: %s contains no extractable text", domain.ErrDocumentLoad, path)
	}

	l.logger.Debug("loaded pdf",
		"path", abs,
		"document_id", doc.ID,
		"pages", doc.PageCount(),
		"runes", utf8.RuneCountInString(doc.Text),
	)
	return doc, nil
}

// extract returns the plain text of every page in order. Pages that cannot
// be decoded are kept as empty strings so page numbers stay stable.
func (l *PDFLoader) extract(r io.ReaderAt, size int64) (pages []string, err error) {
	head := make([]byte, len(pdfMagic))
	if _, err := r.ReadAt(head, 0); err != nil || !bytes.Equal(head, pdfMagic) {
		return nil, fmt.Errorf("missing %s header", pdfMagic)
	}

	// The pdf package panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, err
	}

	n := reader.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			font := page.Font(name)
			fonts[name] = &font
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			l.logger.Warn("failed to extract text from page", "page", i, "error", err)
			continue
		}
		pages[i-1] = strings.TrimRight(text, " \t\r\n")
	}
	return pages, nil
}

func assemble(id, path string, texts []string) domain.Document {
	doc := domain.Document{ID: id, Path: path, Pages: make([]domain.Page, len(texts))}

	var sb strings.Builder
	offset := 0
	for i, text := range texts {
		if i > 0 {
			sb.WriteByte('\n')
			offset++
		}
		doc.Pages[i] = domain.Page{Number: i + 1, Text: text, Offset: offset}
		sb.WriteString(text)
		offset += utf8.RuneCountInString(text)
	}
	doc.Text = sb.String()
	return doc
}
