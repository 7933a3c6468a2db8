// Package memory is an in-process vector store using brute-force cosine
// similarity. Its contents do not outlive the process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/vectorstore"
)

// Storage is a simple in-memory vector store.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]domain.Entry
}

// NewStorage creates an empty store.
func NewStorage() *Storage {
	return &Storage{entries: make(map[string]domain.Entry)}
}

// Init sets the vector dimension. Re-initializing with a different dimension
// discards existing entries.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != dimension {
		s.entries = make(map[string]domain.Entry)
	}
	s.dimension = dimension
	return nil
}

// Upsert stores entries keyed by chunk ID.
func (s *Storage) Upsert(_ context.Context, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(e.Vector), s.dimension)
		}
	}
	for _, e := range entries {
		e.Vector = append([]float32(nil), e.Vector...)
		s.entries[e.Chunk.ChunkID] = e
	}
	return nil
}

// Query scores every entry against vector.
func (s *Storage) Query(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, domain.SearchResult{Chunk: e.Chunk, Score: vectorstore.Cosine(e.Vector, vector)})
	}
	return vectorstore.Rank(results, topK), nil
}

// Count returns the number of stored entries.
func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// DeleteDocument removes every entry belonging to documentID.
func (s *Storage) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.Chunk.DocumentID == documentID {
			delete(s.entries, id)
		}
	}
	return nil
}

// DeleteChunks removes the entries with the given chunk IDs.
func (s *Storage) DeleteChunks(_ context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.entries, id)
	}
	return nil
}

// Close is a no-op.
func (s *Storage) Close() error { return nil }
