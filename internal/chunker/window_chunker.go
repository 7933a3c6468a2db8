// Package chunker splits documents into overlapping character windows.
package chunker

import (
	"strconv"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// WindowChunker splits text into fixed-size rune windows with overlap.
type WindowChunker struct {
	size      int
	overlap   int
	maxChunks int
}

// NewWindowChunker validates the window settings.
func NewWindowChunker(size, overlap, maxChunks int) (*WindowChunker, error) {
	switch {
	case size <= 0:
		return nil, domain.NewConfigurationError("chunk size must be positive, got %d", size)
	case overlap < 0:
		return nil, domain.NewConfigurationError("chunk overlap must not be negative, got %d", overlap)
	case overlap >= size:
		return nil, domain.NewConfigurationError("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	case maxChunks <= 0:
		return nil, domain.NewConfigurationError("max chunks must be positive, got %d", maxChunks)
	}
	return &WindowChunker{size: size, overlap: overlap, maxChunks: maxChunks}, nil
}

// Chunk returns windows starting every size-overlap runes. Once maxChunks is
// reached the final window is stretched to the end of the text, so the
// concatenation of chunk 0 and every later chunk minus its first overlap runes
// always reproduces the document text.
func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	runes := []rune(document.Text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := c.size - c.overlap
	var chunks []domain.Chunk
	for idx := 0; ; idx++ {
		start := idx * step
		end := start + c.size
		if end >= n || idx == c.maxChunks-1 {
			end = n
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       string(runes[start:end]),
			Index:      idx,
			Offset:     start,
			FirstPage:  document.PageAt(start),
			LastPage:   document.PageAt(end - 1),
		})
		if end == n {
			break
		}
	}
	return chunks, nil
}
