package bootstrap

import (
	"context"
	"fmt"

	"github.com/dkovalenko/document-pipeline/internal/config"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
	"github.com/dkovalenko/document-pipeline/internal/core/usecase"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/converter"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/llm/ollama"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/queue/nats"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/repository/postgres"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/resilience"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/storage/localfs"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Docs     ports.DocumentRepository
	Chunks   ports.ChunkRepository
	Vectors  ports.VectorIndex
	Storage  ports.ObjectStorage
	IngestUC ports.DocumentIngestor
	Pipeline ports.PipelineRunner
	SearchUC ports.SearchService

	closeFn func()
}

// New wires the full dependency graph. observer may be nil; the worker passes
// its pipeline metrics so stage batch counts are recorded.
func New(ctx context.Context, cfg config.Config, observer ports.StageObserver) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	docs := postgres.NewDocumentRepository(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	chunks := postgres.NewChunkRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor, cfg.OllamaEmbedRPS)
	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	converters := converter.DefaultRegistry(cfg.ChunkSize, cfg.ChunkOverlap)

	gate := usecase.NewHealthGate(docs, vectors, ollamaClient, cfg.RequiredModels())
	chunkingStage := usecase.NewChunkingStage(converters, chunks, cfg.ChunkBatchSize, observer)
	embeddingStage := usecase.NewEmbeddingStage(docs, chunks, ollamaClient, vectors, cfg.EmbedBatchSize, observer)

	return &App{
		Config: cfg,

		Queue:    queue,
		Docs:     docs,
		Chunks:   chunks,
		Vectors:  vectors,
		Storage:  storage,
		IngestUC: usecase.NewIngestDocumentUseCase(docs, storage, queue),
		Pipeline: usecase.NewPipeline(docs, gate, chunkingStage, embeddingStage),
		SearchUC: usecase.NewSearchUseCase(ollamaClient, vectors, cfg.SearchTopK),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
