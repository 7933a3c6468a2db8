// Package chroma stores chunk vectors in a Chroma collection via its REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/s76354m/AxisRAG/internal/domain"
)

const (
	DefaultCollection = "axisrag_chunks"
	defaultTenant     = "default_tenant"
	defaultDatabase   = "default_database"
)

// Config holds configuration for the Chroma store.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL        string
	Tenant     string
	Database   string
	Collection string
	HTTPClient *http.Client
}

// Storage implements domain.VectorStore using Chroma's v2 REST API.
type Storage struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewStorage creates a Chroma store. The collection is resolved by Init.
func NewStorage(c Config, logger *slog.Logger) (*Storage, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	tenant := c.Tenant
	if tenant == "" {
		tenant = defaultTenant
	}
	database := c.Database
	if database == "" {
		database = defaultDatabase
	}
	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &Storage{
		baseURL: fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s/collections",
			strings.TrimRight(c.URL, "/"), url.PathEscape(tenant), url.PathEscape(database)),
		collectionName: collection,
		httpClient:     client,
		logger:         logger,
	}, nil
}

// Init gets or creates the collection with cosine distance. Chroma fixes the
// dimension on first insert, so dimension is only validated locally.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}

	var collection chromaCollection
	err := s.do(ctx, http.MethodPost, s.baseURL, chromaCreateRequest{
		Name:        s.collectionName,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}, &collection)
	if err != nil {
		return fmt.Errorf("getting or creating collection %q: %w", s.collectionName, err)
	}
	if collection.ID == "" {
		return fmt.Errorf("collection %q: empty id in response", s.collectionName)
	}
	s.collectionID = collection.ID

	s.logger.Info("connected to Chroma",
		"collection", s.collectionName,
		"collection_id", collection.ID,
	)
	return nil
}

func (s *Storage) collectionURL(op string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.collectionID, op)
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (s *Storage) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (s *Storage) ready() error {
	if s.collectionID == "" {
		return errors.New("chroma store not initialized")
	}
	return nil
}

// Upsert stores entries keyed by chunk ID.
func (s *Storage) Upsert(ctx context.Context, entries []domain.Entry) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(entries)),
		Embeddings: make([][]float32, len(entries)),
		Metadatas:  make([]map[string]any, len(entries)),
		Documents:  make([]string, len(entries)),
	}
	for i, e := range entries {
		req.IDs[i] = e.Chunk.ChunkID
		req.Embeddings[i] = e.Vector
		req.Documents[i] = e.Chunk.Text
		req.Metadatas[i] = map[string]any{
			"document_id": e.Chunk.DocumentID,
			"chunk_index": e.Chunk.Index,
			"offset":      e.Chunk.Offset,
			"first_page":  e.Chunk.FirstPage,
			"last_page":   e.Chunk.LastPage,
		}
	}

	if err := s.do(ctx, http.MethodPost, s.collectionURL("upsert"), req, nil); err != nil {
		return fmt.Errorf("upserting records: %w", err)
	}
	s.logger.Debug("upserted records into chroma", "count", len(entries))
	return nil
}

func intField(m map[string]any, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

// Query finds the topK nearest records. Chroma reports cosine distance, so
// similarity is 1 - distance.
func (s *Storage) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var resp chromaQueryResponse
	if err := s.do(ctx, http.MethodPost, s.collectionURL("query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        topK,
		Include:         []string{"metadatas", "distances", "documents"},
	}, &resp); err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}

	// We only query with one embedding.
	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return nil, nil
	}
	ids := resp.IDs[0]

	var distances []float64
	if len(resp.Distances) > 0 {
		distances = resp.Distances[0]
	}
	var metadatas []map[string]any
	if len(resp.Metadatas) > 0 {
		metadatas = resp.Metadatas[0]
	}
	var documents []string
	if len(resp.Documents) > 0 {
		documents = resp.Documents[0]
	}

	results := make([]domain.SearchResult, 0, len(ids))
	for i, id := range ids {
		ch := domain.Chunk{ChunkID: id}
		if i < len(metadatas) && metadatas[i] != nil {
			md := metadatas[i]
			ch.DocumentID, _ = md["document_id"].(string)
			ch.Index = intField(md, "chunk_index")
			ch.Offset = intField(md, "offset")
			ch.FirstPage = intField(md, "first_page")
			ch.LastPage = intField(md, "last_page")
		}
		if i < len(documents) {
			ch.Text = documents[i]
		}
		r := domain.SearchResult{Chunk: ch}
		if i < len(distances) {
			r.Score = 1 - distances[i]
		}
		results = append(results, r)
	}

	s.logger.Debug("queried chroma", "results", len(results))
	return results, nil
}

// Count returns the number of records in the collection.
func (s *Storage) Count(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int
	if err := s.do(ctx, http.MethodGet, s.collectionURL("count"), nil, &n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// DeleteDocument removes every record whose metadata names documentID.
func (s *Storage) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("delete"), chromaDeleteRequest{
		Where: map[string]any{"document_id": documentID},
	}, nil); err != nil {
		return fmt.Errorf("deleting records of %s: %w", documentID, err)
	}
	return nil
}

// DeleteChunks removes the records with the given chunk IDs.
func (s *Storage) DeleteChunks(ctx context.Context, chunkIDs []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("delete"), chromaDeleteRequest{IDs: chunkIDs}, nil); err != nil {
		return fmt.Errorf("deleting %d records: %w", len(chunkIDs), err)
	}
	return nil
}

// Close releases resources held by the store.
func (s *Storage) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}
