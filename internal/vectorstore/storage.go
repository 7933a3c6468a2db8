// Package vectorstore holds the helpers shared by every vector store backend
// and the Guard that wraps them.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// Rank orders results by descending score, breaking ties by chunk index and
// then chunk ID, and keeps at most topK.
func Rank(results []domain.SearchResult, topK int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.Index != b.Chunk.Index {
			return a.Chunk.Index < b.Chunk.Index
		}
		return a.Chunk.ChunkID < b.Chunk.ChunkID
	})
	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. The zero vector is returned as is.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	out := make([]float32, len(v))
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 || len(a) != len(b) {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	m := k.locks[key]
	m.refs--
	if m.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	m.Unlock()
}

// Guarded wraps a backend with the behaviour every store shares. Writes are
// serialized per chunk ID and vectors are normalized. Zero vectors are never
// indexed, results are ranked deterministically, and backend errors wrap
// domain.ErrRetrieval.
type Guarded struct {
	backend   domain.VectorStore
	name      string
	dimension int
	keys      keyedMutex
	logger    *slog.Logger
}

// Guard wraps backend. name is used in errors and logs.
func Guard(name string, backend domain.VectorStore, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guarded{backend: backend, name: name, logger: logger}
}

// Name returns the backend name.
func (g *Guarded) Name() string { return g.name }

func (g *Guarded) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", domain.ErrRetrieval, g.name, op, err)
}

// Init prepares the backend for vectors of the given dimension.
func (g *Guarded) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.NewConfigurationError("vector dimension must be positive, got %d", dimension)
	}
	if err := g.backend.Init(ctx, dimension); err != nil {
		return g.wrap("init", err)
	}
	g.dimension = dimension
	return nil
}

// Upsert stores entries, replacing any with the same chunk ID. An entry with
// a zero vector removes the chunk instead, so a stale vector never outlives
// its re-embedding.
func (g *Guarded) Upsert(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var (
		keep []domain.Entry
		drop []string
	)
	for _, e := range dedupe(entries) {
		if g.dimension > 0 && len(e.Vector) != g.dimension {
			return g.wrap("upsert", fmt.Errorf("chunk %s has %d dimensions, store expects %d", e.Chunk.ChunkID, len(e.Vector), g.dimension))
		}
		if Norm(e.Vector) == 0 {
			g.logger.Debug("zero vector, removing chunk", "store", g.name, "chunk_id", e.Chunk.ChunkID)
			drop = append(drop, e.Chunk.ChunkID)
			continue
		}
		e.Vector = Normalize(e.Vector)
		keep = append(keep, e)
	}

	ids := slices.Clone(drop)
	for _, e := range keep {
		ids = append(ids, e.Chunk.ChunkID)
	}
	slices.Sort(ids)
	for _, id := range ids {
		g.keys.lock(id)
	}
	defer func() {
		for _, id := range ids {
			g.keys.unlock(id)
		}
	}()

	if len(drop) > 0 {
		if err := g.backend.DeleteChunks(ctx, drop); err != nil {
			return g.wrap("upsert", err)
		}
	}
	if len(keep) == 0 {
		return nil
	}
	return g.wrap("upsert", g.backend.Upsert(ctx, keep))
}

// dedupe keeps the last entry for each chunk ID.
func dedupe(entries []domain.Entry) []domain.Entry {
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		last[e.Chunk.ChunkID] = i
	}
	if len(last) == len(entries) {
		return entries
	}
	out := make([]domain.Entry, 0, len(last))
	for i, e := range entries {
		if last[e.Chunk.ChunkID] == i {
			out = append(out, e)
		}
	}
	return out
}

// Query returns up to topK results ordered by descending cosine similarity.
// A zero query vector matches nothing. Backends cut their nearest-neighbour
// list at the limit they are given, so the limit grows until no result tied
// with the last kept one can be missing.
func (g *Guarded) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if g.dimension > 0 && len(vector) != g.dimension {
		return nil, g.wrap("query", fmt.Errorf("query has %d dimensions, store expects %d", len(vector), g.dimension))
	}
	if Norm(vector) == 0 {
		return nil, nil
	}

	q := Normalize(vector)
	for limit := topK + 1; ; limit *= 2 {
		results, err := g.backend.Query(ctx, q, limit)
		if err != nil {
			return nil, g.wrap("query", err)
		}
		results = Rank(results, -1)
		if len(results) < limit || results[topK-1].Score != results[len(results)-1].Score {
			return Rank(results, topK), nil
		}
		g.logger.Debug("tie at result cutoff, fetching more", "store", g.name, "limit", limit)
	}
}

// DeleteChunks removes the given chunks.
func (g *Guarded) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := slices.Compact(slices.Sorted(slices.Values(chunkIDs)))
	for _, id := range ids {
		g.keys.lock(id)
	}
	defer func() {
		for _, id := range ids {
			g.keys.unlock(id)
		}
	}()
	return g.wrap("delete", g.backend.DeleteChunks(ctx, ids))
}

// Count returns the number of indexed chunks.
func (g *Guarded) Count(ctx context.Context) (int, error) {
	n, err := g.backend.Count(ctx)
	return n, g.wrap("count", err)
}

// DeleteDocument removes every chunk of a document.
func (g *Guarded) DeleteDocument(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return nil
	}
	return g.wrap("delete", g.backend.DeleteDocument(ctx, documentID))
}

// Close releases the backend.
func (g *Guarded) Close() error {
	return g.wrap("close", g.backend.Close())
}
