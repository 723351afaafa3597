package ports

import (
	"context"
	"io"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	List(ctx context.Context) ([]*domain.Document, error)
	UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus) error
	// ClaimForProcessing is a compare-and-swap into processing: the update
	// applies only while the current status is one of allowedFrom. It returns
	// false when another run holds the document or the status forbids the stage.
	ClaimForProcessing(ctx context.Context, id int64, allowedFrom []domain.DocumentStatus) (bool, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// ChunkRepository persists chunk rows. AddChunks commits one transaction per
// call; a failed call rolls back only the chunks passed to it.
type ChunkRepository interface {
	AddChunks(ctx context.Context, chunks []*domain.Chunk) error
	ListPending(ctx context.Context, documentID int64) ([]*domain.Chunk, error)
	ListByDocument(ctx context.Context, documentID int64) ([]*domain.Chunk, error)
	MarkEmbedded(ctx context.Context, chunkIDs []int64) error
	CountPending(ctx context.Context, documentID int64) (int, error)
	DeleteByDocument(ctx context.Context, documentID int64) error
}

// Converter turns a stored source file into an ordered sequence of text
// fragments with optional page attribution.
type Converter interface {
	Convert(ctx context.Context, filePath string) ([]domain.Fragment, error)
}

// Embedder builds vectors for chunk texts and query text, aligned by position.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores chunk vectors and serves similarity search.
type VectorIndex interface {
	UpsertChunks(ctx context.Context, points []domain.ChunkPoint) error
	DeleteByDocument(ctx context.Context, documentID int64) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error)
	Live(ctx context.Context) error
	CollectionExists(ctx context.Context) (bool, error)
}

// ModelProvider exposes which models the embedding/chat provider has pulled.
type ModelProvider interface {
	ListModels(ctx context.Context) ([]string, error)
}

// StageObserver receives per-batch progress counts from the pipeline stages.
// A nil observer disables reporting.
type StageObserver interface {
	ChunksCommitted(count int)
	ChunksEmbedded(count int)
}

// MessageQueue hands a document id from the API to the processing worker.
type MessageQueue interface {
	PublishDocumentProcess(ctx context.Context, documentID int64) error
	SubscribeDocumentProcess(ctx context.Context, handler func(context.Context, int64) error) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}
