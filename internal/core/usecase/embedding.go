package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

const defaultEmbedBatchSize = 20

// EmbeddingStage embeds a document's pending chunks in bounded batches and
// records each batch's vectors before marking the chunks embedded. A batch
// failure aborts the stage; earlier batches stay embedded and stored.
type EmbeddingStage struct {
	docs      ports.DocumentRepository
	chunks    ports.ChunkRepository
	embedder  ports.Embedder
	vectors   ports.VectorIndex
	batchSize int
	observer  ports.StageObserver
}

func NewEmbeddingStage(
	docs ports.DocumentRepository,
	chunks ports.ChunkRepository,
	embedder ports.Embedder,
	vectors ports.VectorIndex,
	batchSize int,
	observer ports.StageObserver,
) *EmbeddingStage {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &EmbeddingStage{
		docs:      docs,
		chunks:    chunks,
		embedder:  embedder,
		vectors:   vectors,
		batchSize: batchSize,
		observer:  observer,
	}
}

// EmbedDocument returns whether the document has zero pending chunks left,
// which is the orchestrator's trigger to advance it to completed. Calling it
// again after full completion is a no-op success.
func (s *EmbeddingStage) EmbedDocument(ctx context.Context, documentID int64) (bool, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("fetch document for embedding: %w", err)
	}

	pending, err := s.chunks.ListPending(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("list pending chunks: %w", err)
	}
	if len(pending) == 0 {
		slog.Info("no_pending_chunks", "document_id", documentID)
		return true, nil
	}

	total := len(pending)
	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		if err := s.embedBatch(ctx, doc, pending[start:end]); err != nil {
			return false, fmt.Errorf("embed batch for document %d (embedded %d/%d): %w", documentID, start, total, err)
		}
		if s.observer != nil {
			s.observer.ChunksEmbedded(end - start)
		}
		slog.Info("embed_batch_committed",
			"document_id", documentID,
			"embedded", end,
			"total", total,
		)
	}

	remaining, err := s.chunks.CountPending(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("count pending chunks: %w", err)
	}
	return remaining == 0, nil
}

func (s *EmbeddingStage) embedBatch(ctx context.Context, doc *domain.Document, batch []*domain.Chunk) error {
	texts := make([]string, 0, len(batch))
	for _, chunk := range batch {
		texts = append(texts, chunk.Content)
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunk texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunk texts",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts)),
		)
	}

	points := make([]domain.ChunkPoint, 0, len(batch))
	ids := make([]int64, 0, len(batch))
	for i, chunk := range batch {
		points = append(points, domain.ChunkPoint{
			ID:      chunk.UUID,
			Vector:  vectors[i],
			Payload: chunkPayload(chunk, doc),
		})
		ids = append(ids, chunk.ID)
	}

	if err := s.vectors.UpsertChunks(ctx, points); err != nil {
		return fmt.Errorf("store chunk vectors: %w", err)
	}
	if err := s.chunks.MarkEmbedded(ctx, ids); err != nil {
		return fmt.Errorf("mark chunks embedded: %w", err)
	}
	return nil
}

func chunkPayload(chunk *domain.Chunk, doc *domain.Document) map[string]any {
	payload := map[string]any{
		"chunk_id":          chunk.ID,
		"chunk_uuid":        chunk.UUID,
		"document_id":       chunk.DocumentID,
		"document_name":     doc.Title,
		"division":          doc.Division,
		"department":        doc.Department,
		"content":           chunk.Content,
		"chunk_metadata":    chunk.Metadata,
		"processed_by":      "embedding_service",
		"extraction_method": extractionMethod(chunk),
		"created_at":        chunk.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if chunk.PageNumber != nil {
		payload["document_page_no"] = *chunk.PageNumber
	}
	return payload
}

func extractionMethod(chunk *domain.Chunk) string {
	if chunk.Metadata == nil {
		return ""
	}
	method, _ := chunk.Metadata["extraction_method"].(string)
	return method
}
