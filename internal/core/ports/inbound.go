package ports

import (
	"context"
	"io"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
)

// PipelineRunner is the inbound contract for document processing. All three
// run operations enforce the status guards and are safe to re-invoke once the
// document is back in an allowed state.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, documentID int64, filePath string) error
	RunChunking(ctx context.Context, documentID int64, filePath string) error
	RunEmbedding(ctx context.Context, documentID int64) error
	CheckHealth(ctx context.Context) domain.HealthReport
}

// DocumentIngestor is the inbound contract for document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, upload DocumentUpload) (*domain.Document, error)
}

// DocumentUpload carries the multipart upload fields.
type DocumentUpload struct {
	Filename   string
	Title      string
	Department string
	Division   string
	Body       io.Reader
}

// SearchService is the inbound contract for semantic retrieval over chunks.
type SearchService interface {
	Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
}
