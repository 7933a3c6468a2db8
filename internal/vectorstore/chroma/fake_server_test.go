package chroma_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

type record struct {
	embedding []float32
	metadata  map[string]any
	document  string
}

// fakeChroma implements the subset of the v2 API the store uses.
type fakeChroma struct {
	mu       sync.Mutex
	records  map[string]record
	created  int
	space    string
	requests []string
}

func newFakeChroma() (*fakeChroma, *httptest.Server) {
	f := &fakeChroma{records: map[string]record{}}
	return f, httptest.NewServer(http.HandlerFunc(f.serve))
}

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

func (f *fakeChroma) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.URL.Path == collectionsPath && r.Method == http.MethodPost {
		var body struct {
			Name     string         `json:"name"`
			Metadata map[string]any `json:"metadata"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.created++
		f.space, _ = body.Metadata["hnsw:space"].(string)
		json.NewEncoder(w).Encode(map[string]any{"id": "col-1", "name": body.Name})
		return
	}

	op := strings.TrimPrefix(r.URL.Path, collectionsPath+"/col-1/")
	switch op {
	case "upsert":
		var body struct {
			IDs        []string         `json:"ids"`
			Embeddings [][]float32      `json:"embeddings"`
			Metadatas  []map[string]any `json:"metadatas"`
			Documents  []string         `json:"documents"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for i, id := range body.IDs {
			f.records[id] = record{embedding: body.Embeddings[i], metadata: body.Metadatas[i], document: body.Documents[i]}
		}
		json.NewEncoder(w).Encode(map[string]any{})
	case "query":
		var body struct {
			QueryEmbeddings [][]float32 `json:"query_embeddings"`
			NResults        int         `json:"n_results"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		q := body.QueryEmbeddings[0]
		type hit struct {
			id   string
			dist float64
		}
		var hits []hit
		for id, rec := range f.records {
			hits = append(hits, hit{id, 1 - cosine(q, rec.embedding)})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
		if len(hits) > body.NResults {
			hits = hits[:body.NResults]
		}
		ids, dists, mds, docs := []string{}, []float64{}, []map[string]any{}, []string{}
		for _, h := range hits {
			rec := f.records[h.id]
			ids = append(ids, h.id)
			dists = append(dists, h.dist)
			mds = append(mds, rec.metadata)
			docs = append(docs, rec.document)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ids":       [][]string{ids},
			"distances": [][]float64{dists},
			"metadatas": [][]map[string]any{mds},
			"documents": [][]string{docs},
		})
	case "count":
		json.NewEncoder(w).Encode(len(f.records))
	case "delete":
		var body struct {
			IDs   []string       `json:"ids"`
			Where map[string]any `json:"where"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, id := range body.IDs {
			delete(f.records, id)
		}
		for id, rec := range f.records {
			if body.Where != nil && rec.metadata["document_id"] == body.Where["document_id"] {
				delete(f.records, id)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
