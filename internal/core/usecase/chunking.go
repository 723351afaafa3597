package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

const defaultChunkBatchSize = 5

// ChunkingStage converts a source file into persisted chunk rows, committed
// in bounded batches so a multi-thousand-fragment document never holds one
// giant transaction. Batches already committed survive a later failure.
type ChunkingStage struct {
	converter ports.Converter
	chunks    ports.ChunkRepository
	batchSize int
	observer  ports.StageObserver
}

func NewChunkingStage(converter ports.Converter, chunks ports.ChunkRepository, batchSize int, observer ports.StageObserver) *ChunkingStage {
	if batchSize <= 0 {
		batchSize = defaultChunkBatchSize
	}
	return &ChunkingStage{
		converter: converter,
		chunks:    chunks,
		batchSize: batchSize,
		observer:  observer,
	}
}

// ChunkDocument does not touch document status; the orchestrator owns the
// transitions around this stage and is responsible for the status guard.
func (s *ChunkingStage) ChunkDocument(ctx context.Context, documentID int64, filePath string) error {
	fragments, err := s.converter.Convert(ctx, filePath)
	if err != nil {
		return fmt.Errorf("convert document %d: %w", documentID, err)
	}
	if len(fragments) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("converter produced zero fragments"))
	}

	now := time.Now().UTC()
	records := make([]*domain.Chunk, 0, len(fragments))
	for _, fragment := range fragments {
		records = append(records, &domain.Chunk{
			UUID:       uuid.NewString(),
			DocumentID: documentID,
			Content:    fragment.Text,
			PageNumber: fragment.PageNumber,
			Metadata:   fragment.Metadata,
			Status:     domain.ChunkPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	total := len(records)
	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		if err := s.chunks.AddChunks(ctx, records[start:end]); err != nil {
			return fmt.Errorf("persist chunk batch for document %d (committed %d/%d): %w", documentID, start, total, err)
		}
		if s.observer != nil {
			s.observer.ChunksCommitted(end - start)
		}
		slog.Info("chunk_batch_committed",
			"document_id", documentID,
			"committed", end,
			"total", total,
		)
	}

	slog.Info("chunking_completed", "document_id", documentID, "chunks", total)
	return nil
}
