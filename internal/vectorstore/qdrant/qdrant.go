// Package qdrant stores chunk vectors in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/s76354m/AxisRAG/internal/domain"
)

// DefaultCollection is used when Config.Collection is empty.
const DefaultCollection = "axisrag_chunks"

// Config contains connection details for a Qdrant server.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Storage is a Qdrant-backed vector store using cosine distance.
type Storage struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewStorage connects to Qdrant. The collection is created by Init.
func NewStorage(c Config, logger *slog.Logger) (*Storage, error) {
	if c.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Storage{client: client, collection: collection, logger: logger}, nil
}

// Init creates the collection if missing and checks its vector size.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", s.collection, err)
	}

	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("creating collection %q: %w", s.collection, err)
		}
		s.logger.Info("created qdrant collection", "collection", s.collection, "dimensions", dimension)
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("reading collection %q: %w", s.collection, err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && size != uint64(dimension) {
		return fmt.Errorf("collection %q holds %d-dimensional vectors, embedder produces %d", s.collection, size, dimension)
	}
	return nil
}

// pointID maps a chunk ID to the UUID Qdrant requires as point ID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("axisrag:"+chunkID)).String()
}

func payload(ch domain.Chunk) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"document_id": ch.DocumentID,
		"chunk_id":    ch.ChunkID,
		"chunk_index": int64(ch.Index),
		"offset":      int64(ch.Offset),
		"first_page":  int64(ch.FirstPage),
		"last_page":   int64(ch.LastPage),
		"text":        ch.Text,
	})
}

func chunkFromPayload(p map[string]*qdrant.Value) domain.Chunk {
	return domain.Chunk{
		DocumentID: p["document_id"].GetStringValue(),
		ChunkID:    p["chunk_id"].GetStringValue(),
		Index:      int(p["chunk_index"].GetIntegerValue()),
		Offset:     int(p["offset"].GetIntegerValue()),
		FirstPage:  int(p["first_page"].GetIntegerValue()),
		LastPage:   int(p["last_page"].GetIntegerValue()),
		Text:       p["text"].GetStringValue(),
	}
}

// Upsert writes points keyed by a UUID derived from the chunk ID, so
// re-upserting a chunk replaces its point.
func (s *Storage) Upsert(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(e.Chunk.ChunkID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payload(e.Chunk),
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	s.logger.Debug("upserted points into qdrant", "count", len(points))
	return nil
}

// Query returns the topK nearest points with their payloads.
func (s *Storage) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, domain.SearchResult{
			Chunk: chunkFromPayload(p.GetPayload()),
			Score: float64(p.GetScore()),
		})
	}
	return results, nil
}

// Count returns the exact number of points in the collection.
func (s *Storage) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// DeleteDocument removes every point whose payload names documentID.
func (s *Storage) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
		}),
	}); err != nil {
		return fmt.Errorf("deleting points of %s: %w", documentID, err)
	}
	return nil
}

// DeleteChunks removes the points of the given chunks.
func (s *Storage) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = qdrant.NewID(pointID(id))
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(ids...),
	}); err != nil {
		return fmt.Errorf("deleting %d points: %w", len(ids), err)
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Storage) Close() error {
	return s.client.Close()
}
