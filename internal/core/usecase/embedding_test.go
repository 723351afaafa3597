package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
)

type embedDocRepoFake struct {
	doc *domain.Document
	err error
}

func (f *embedDocRepoFake) Create(context.Context, *domain.Document) error { return nil }
func (f *embedDocRepoFake) GetByID(context.Context, int64) (*domain.Document, error) {
	return f.doc, f.err
}
func (f *embedDocRepoFake) List(context.Context) ([]*domain.Document, error) { return nil, nil }
func (f *embedDocRepoFake) UpdateStatus(context.Context, int64, domain.DocumentStatus) error {
	return nil
}
func (f *embedDocRepoFake) ClaimForProcessing(context.Context, int64, []domain.DocumentStatus) (bool, error) {
	return true, nil
}
func (f *embedDocRepoFake) Delete(context.Context, int64) error { return nil }
func (f *embedDocRepoFake) Ping(context.Context) error          { return nil }

type embedChunkRepoFake struct {
	pending  []*domain.Chunk
	embedded map[int64]bool
}

func (f *embedChunkRepoFake) AddChunks(context.Context, []*domain.Chunk) error { return nil }

func (f *embedChunkRepoFake) ListPending(context.Context, int64) ([]*domain.Chunk, error) {
	return f.pending, nil
}

func (f *embedChunkRepoFake) ListByDocument(context.Context, int64) ([]*domain.Chunk, error) {
	return f.pending, nil
}

func (f *embedChunkRepoFake) MarkEmbedded(_ context.Context, ids []int64) error {
	if f.embedded == nil {
		f.embedded = make(map[int64]bool)
	}
	for _, id := range ids {
		f.embedded[id] = true
	}
	return nil
}

func (f *embedChunkRepoFake) CountPending(context.Context, int64) (int, error) {
	remaining := 0
	for _, chunk := range f.pending {
		if !f.embedded[chunk.ID] {
			remaining++
		}
	}
	return remaining, nil
}

func (f *embedChunkRepoFake) DeleteByDocument(context.Context, int64) error { return nil }

type embedderFake struct {
	dims      int
	failBatch int // 1-based call index that fails; 0 means never
	calls     int
	batchLens []int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.batchLens = append(f.batchLens, len(texts))
	if f.failBatch > 0 && f.calls == f.failBatch {
		return nil, errors.New("model timed out")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, f.dims)
	}
	return vectors, nil
}

func (f *embedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type vectorIndexRecorder struct {
	points []domain.ChunkPoint
}

func (r *vectorIndexRecorder) UpsertChunks(_ context.Context, points []domain.ChunkPoint) error {
	r.points = append(r.points, points...)
	return nil
}

func (r *vectorIndexRecorder) DeleteByDocument(context.Context, int64) error { return nil }

func (r *vectorIndexRecorder) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

func (r *vectorIndexRecorder) Live(context.Context) error { return nil }

func (r *vectorIndexRecorder) CollectionExists(context.Context) (bool, error) { return true, nil }

func pendingChunks(n int) []*domain.Chunk {
	now := time.Now().UTC()
	chunks := make([]*domain.Chunk, 0, n)
	for i := 0; i < n; i++ {
		page := i + 1
		chunks = append(chunks, &domain.Chunk{
			ID:         int64(i + 1),
			UUID:       fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1),
			DocumentID: 7,
			Content:    fmt.Sprintf("chunk %d", i),
			PageNumber: &page,
			Metadata:   map[string]any{"extraction_method": "test"},
			Status:     domain.ChunkPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return chunks
}

func embedTestDoc() *domain.Document {
	return &domain.Document{
		ID:         7,
		UUID:       "doc-uuid",
		Title:      "handbook.pdf",
		Department: "hr",
		Division:   "ops",
		Status:     domain.StatusChunked,
	}
}

func TestEmbedDocumentEmbedsAllPending(t *testing.T) {
	chunks := &embedChunkRepoFake{pending: pendingChunks(7)}
	embedder := &embedderFake{dims: 4}
	index := &vectorIndexRecorder{}
	stage := NewEmbeddingStage(&embedDocRepoFake{doc: embedTestDoc()}, chunks, embedder, index, 3, nil)

	drained, err := stage.EmbedDocument(context.Background(), 7)
	if err != nil {
		t.Fatalf("EmbedDocument failed: %v", err)
	}
	if !drained {
		t.Fatal("expected document to be drained")
	}

	if embedder.calls != 3 {
		t.Fatalf("expected 3 embed calls, got %d", embedder.calls)
	}
	wantLens := []int{3, 3, 1}
	for i, n := range embedder.batchLens {
		if n != wantLens[i] {
			t.Fatalf("embed call %d got %d texts, want %d", i, n, wantLens[i])
		}
	}
	if len(index.points) != 7 {
		t.Fatalf("expected 7 points upserted, got %d", len(index.points))
	}
	if len(chunks.embedded) != 7 {
		t.Fatalf("expected 7 chunks marked embedded, got %d", len(chunks.embedded))
	}

	point := index.points[0]
	if point.ID != chunks.pending[0].UUID {
		t.Fatalf("point keyed by %q, want chunk uuid %q", point.ID, chunks.pending[0].UUID)
	}
	if point.Payload["document_name"] != "handbook.pdf" {
		t.Fatalf("unexpected document_name payload: %v", point.Payload["document_name"])
	}
	if point.Payload["processed_by"] != "embedding_service" {
		t.Fatalf("unexpected processed_by payload: %v", point.Payload["processed_by"])
	}
	if point.Payload["document_page_no"] != 1 {
		t.Fatalf("unexpected document_page_no payload: %v", point.Payload["document_page_no"])
	}
}

func TestEmbedDocumentReportsBatchCounts(t *testing.T) {
	chunks := &embedChunkRepoFake{pending: pendingChunks(7)}
	observer := &stageObserverFake{}
	stage := NewEmbeddingStage(&embedDocRepoFake{doc: embedTestDoc()}, chunks, &embedderFake{dims: 4}, &vectorIndexRecorder{}, 3, observer)

	if _, err := stage.EmbedDocument(context.Background(), 7); err != nil {
		t.Fatalf("EmbedDocument failed: %v", err)
	}

	want := []int{3, 3, 1}
	if len(observer.embedded) != len(want) {
		t.Fatalf("embedded counts %v, want %v", observer.embedded, want)
	}
	for i, n := range want {
		if observer.embedded[i] != n {
			t.Fatalf("embedded counts %v, want %v", observer.embedded, want)
		}
	}
}

func TestEmbedDocumentNoPendingIsNoop(t *testing.T) {
	chunks := &embedChunkRepoFake{}
	embedder := &embedderFake{dims: 4}
	index := &vectorIndexRecorder{}
	stage := NewEmbeddingStage(&embedDocRepoFake{doc: embedTestDoc()}, chunks, embedder, index, 3, nil)

	drained, err := stage.EmbedDocument(context.Background(), 7)
	if err != nil {
		t.Fatalf("EmbedDocument failed: %v", err)
	}
	if !drained {
		t.Fatal("no pending chunks must report drained")
	}
	if embedder.calls != 0 {
		t.Fatalf("embedder must not be called, got %d calls", embedder.calls)
	}
	if len(index.points) != 0 {
		t.Fatalf("no points may be upserted, got %d", len(index.points))
	}
}

func TestEmbedDocumentBatchFailureKeepsEarlierBatches(t *testing.T) {
	chunks := &embedChunkRepoFake{pending: pendingChunks(7)}
	embedder := &embedderFake{dims: 4, failBatch: 2}
	index := &vectorIndexRecorder{}
	stage := NewEmbeddingStage(&embedDocRepoFake{doc: embedTestDoc()}, chunks, embedder, index, 3, nil)

	_, err := stage.EmbedDocument(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}

	if len(index.points) != 3 {
		t.Fatalf("only the first batch may be upserted, got %d points", len(index.points))
	}
	if len(chunks.embedded) != 3 {
		t.Fatalf("only the first batch may be marked embedded, got %d", len(chunks.embedded))
	}
}

func TestEmbedDocumentVectorCountMismatch(t *testing.T) {
	chunks := &embedChunkRepoFake{pending: pendingChunks(2)}
	stage := NewEmbeddingStage(&embedDocRepoFake{doc: embedTestDoc()}, chunks, &truncatingEmbedder{}, &vectorIndexRecorder{}, 5, nil)

	_, err := stage.EmbedDocument(context.Background(), 7)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

type truncatingEmbedder struct{}

func (e *truncatingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}

func (e *truncatingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, nil
}
