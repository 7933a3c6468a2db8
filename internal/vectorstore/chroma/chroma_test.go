package chroma_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/s76354m/AxisRAG/internal/domain"
	"github.com/s76354m/AxisRAG/internal/logger"
	"github.com/s76354m/AxisRAG/internal/vectorstore"
	"github.com/s76354m/AxisRAG/internal/vectorstore/chroma"
)

var _ = Describe("Storage", func() {
	var (
		ctx    context.Context
		fake   *fakeChroma
		server *httptest.Server
		store  *vectorstore.Guarded
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake, server = newFakeChroma()
		DeferCleanup(server.Close)

		backend, err := chroma.NewStorage(chroma.Config{URL: server.URL}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		store = vectorstore.Guard("chroma", backend, logger.Nop())
		Expect(store.Init(ctx, 3)).To(Succeed())
	})

	It("requires a URL", func() {
		_, err := chroma.NewStorage(chroma.Config{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("chroma URL is required")))
	})

	It("creates the collection with cosine distance", func() {
		Expect(fake.created).To(Equal(1))
		Expect(fake.space).To(Equal("cosine"))
	})

	It("upserts, queries and converts distance to similarity", func() {
		Expect(store.Upsert(ctx, []domain.Entry{
			{Chunk: domain.Chunk{DocumentID: "d", ChunkID: "d:0", Index: 0, Text: "alpha", FirstPage: 1, LastPage: 1}, Vector: []float32{1, 0, 0}},
			{Chunk: domain.Chunk{DocumentID: "d", ChunkID: "d:1", Index: 1, Text: "beta", Offset: 900, FirstPage: 1, LastPage: 2}, Vector: []float32{0, 1, 0}},
		})).To(Succeed())

		res, err := store.Query(ctx, []float32{0, 1, 0}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(HaveLen(1))
		Expect(res[0].Chunk).To(Equal(domain.Chunk{DocumentID: "d", ChunkID: "d:1", Index: 1, Text: "beta", Offset: 900, FirstPage: 1, LastPage: 2}))
		Expect(res[0].Score).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("replaces on re-upsert and counts records", func() {
		e := domain.Entry{Chunk: domain.Chunk{DocumentID: "d", ChunkID: "d:0"}, Vector: []float32{1, 0, 0}}
		Expect(store.Upsert(ctx, []domain.Entry{e})).To(Succeed())
		Expect(store.Upsert(ctx, []domain.Entry{e})).To(Succeed())

		n, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("deletes by document", func() {
		Expect(store.Upsert(ctx, []domain.Entry{
			{Chunk: domain.Chunk{DocumentID: "a", ChunkID: "a:0"}, Vector: []float32{1, 0, 0}},
			{Chunk: domain.Chunk{DocumentID: "b", ChunkID: "b:0"}, Vector: []float32{0, 1, 0}},
		})).To(Succeed())
		Expect(store.DeleteDocument(ctx, "a")).To(Succeed())

		n, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("deletes single records by ID", func() {
		Expect(store.Upsert(ctx, []domain.Entry{
			{Chunk: domain.Chunk{DocumentID: "a", ChunkID: "a:0"}, Vector: []float32{1, 0, 0}},
			{Chunk: domain.Chunk{DocumentID: "a", ChunkID: "a:1"}, Vector: []float32{0, 1, 0}},
		})).To(Succeed())
		Expect(store.Upsert(ctx, []domain.Entry{
			{Chunk: domain.Chunk{DocumentID: "a", ChunkID: "a:0"}, Vector: []float32{0, 0, 0}},
		})).To(Succeed())

		n, err := store.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("returns an empty result for an empty collection", func() {
		res, err := store.Query(ctx, []float32{1, 0, 0}, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(BeEmpty())
	})

	It("surfaces server errors as retrieval errors", func() {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		}))
		defer failing.Close()

		backend, err := chroma.NewStorage(chroma.Config{URL: failing.URL}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		err = vectorstore.Guard("chroma", backend, logger.Nop()).Init(ctx, 3)
		Expect(errors.Is(err, domain.ErrRetrieval)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("status 503"))
	})
})
