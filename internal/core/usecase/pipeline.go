package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

var (
	chunkableStates  = []domain.DocumentStatus{domain.StatusPending, domain.StatusError, domain.StatusChunked}
	embeddableStates = []domain.DocumentStatus{domain.StatusChunked, domain.StatusError, domain.StatusCompleted}
)

// Pipeline sequences health gate -> chunking -> embedding for one document,
// owning every status transition around the stages. Stages never mutate
// document status themselves. There is no internal retry: a failed run leaves
// the document in error and a fresh invocation (re-allowed by the status
// guards) is the only way forward.
type Pipeline struct {
	docs      ports.DocumentRepository
	gate      *HealthGate
	chunking  *ChunkingStage
	embedding *EmbeddingStage
}

func NewPipeline(
	docs ports.DocumentRepository,
	gate *HealthGate,
	chunking *ChunkingStage,
	embedding *EmbeddingStage,
) *Pipeline {
	return &Pipeline{
		docs:      docs,
		gate:      gate,
		chunking:  chunking,
		embedding: embedding,
	}
}

func (p *Pipeline) CheckHealth(ctx context.Context) domain.HealthReport {
	return p.gate.Check(ctx)
}

// RunPipeline processes one document end to end. Precondition violations
// (missing document, disallowed status, concurrent run) are returned without
// touching the document; anything that fails after work has started flips the
// document to error.
func (p *Pipeline) RunPipeline(ctx context.Context, documentID int64, filePath string) error {
	if _, err := p.docs.GetByID(ctx, documentID); err != nil {
		return fmt.Errorf("fetch document %d: %w", documentID, err)
	}

	report := p.gate.Check(ctx)
	if !report.CanProcess {
		slog.Error("pipeline_gate_refused",
			"document_id", documentID,
			"overall", report.Overall,
		)
		unavailable := &domain.UnavailableError{Report: report}
		return p.failDocument(ctx, documentID, unavailable)
	}

	if err := p.runChunkingStage(ctx, documentID, filePath); err != nil {
		return err
	}
	return p.runEmbeddingStage(ctx, documentID)
}

// RunChunking is the independently invocable chunking sub-operation.
// Re-running against a chunked or errored document appends new chunks
// alongside the existing ones; it never deduplicates.
func (p *Pipeline) RunChunking(ctx context.Context, documentID int64, filePath string) error {
	if _, err := p.docs.GetByID(ctx, documentID); err != nil {
		return fmt.Errorf("fetch document %d: %w", documentID, err)
	}
	return p.runChunkingStage(ctx, documentID, filePath)
}

// RunEmbedding is the independently invocable embedding sub-operation.
// It is idempotent: with no pending chunks it completes without side effects.
func (p *Pipeline) RunEmbedding(ctx context.Context, documentID int64) error {
	if _, err := p.docs.GetByID(ctx, documentID); err != nil {
		return fmt.Errorf("fetch document %d: %w", documentID, err)
	}
	return p.runEmbeddingStage(ctx, documentID)
}

func (p *Pipeline) runChunkingStage(ctx context.Context, documentID int64, filePath string) error {
	if err := p.claim(ctx, documentID, "chunking", chunkableStates); err != nil {
		return err
	}

	if err := p.chunking.ChunkDocument(ctx, documentID, filePath); err != nil {
		return p.failDocument(ctx, documentID, err)
	}

	if err := p.docs.UpdateStatus(ctx, documentID, domain.StatusChunked); err != nil {
		return p.failDocument(ctx, documentID, fmt.Errorf("set status=chunked: %w", err))
	}
	return nil
}

func (p *Pipeline) runEmbeddingStage(ctx context.Context, documentID int64) error {
	if err := p.claim(ctx, documentID, "embedding", embeddableStates); err != nil {
		return err
	}

	drained, err := p.embedding.EmbedDocument(ctx, documentID)
	if err != nil {
		return p.failDocument(ctx, documentID, err)
	}

	next := domain.StatusCompleted
	if !drained {
		// Pending chunks appeared mid-stage (e.g. a concurrent re-chunk);
		// the document is not done, only chunked.
		slog.Warn("embedding_left_pending_chunks", "document_id", documentID)
		next = domain.StatusChunked
	}
	if err := p.docs.UpdateStatus(ctx, documentID, next); err != nil {
		return p.failDocument(ctx, documentID, fmt.Errorf("set status=%s: %w", next, err))
	}
	return nil
}

// claim is the per-document lease: a compare-and-swap into processing that
// only succeeds from the stage's allowed source states. It rejects both a
// disallowed status and a concurrent run without mutating anything.
func (p *Pipeline) claim(ctx context.Context, documentID int64, stage string, allowedFrom []domain.DocumentStatus) error {
	claimed, err := p.docs.ClaimForProcessing(ctx, documentID, allowedFrom)
	if err != nil {
		return fmt.Errorf("claim document %d for %s: %w", documentID, stage, err)
	}
	if !claimed {
		return domain.WrapError(
			domain.ErrConflict,
			"start "+stage,
			fmt.Errorf("document %d is already processing or its status does not allow %s", documentID, stage),
		)
	}
	return nil
}

// failDocument records the error state best-effort. The primary stage error is
// never swallowed: a failed status write is appended, not substituted.
func (p *Pipeline) failDocument(ctx context.Context, documentID int64, stageErr error) error {
	if markErr := p.docs.UpdateStatus(ctx, documentID, domain.StatusError); markErr != nil {
		slog.Error("mark_error_status_failed",
			"document_id", documentID,
			"stage_error", stageErr,
			"status_error", markErr,
		)
		return fmt.Errorf("%w; mark error status: %v", stageErr, markErr)
	}
	return stageErr
}
