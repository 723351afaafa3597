package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".xlsx": true,
}

// IngestDocumentUseCase stores an uploaded file, records the document as
// pending, and hands the id to the processing worker.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(ctx context.Context, upload ports.DocumentUpload) (*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if !allowedExtensions[ext] {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"upload document",
			fmt.Errorf("unsupported file extension %q", ext),
		)
	}
	if strings.TrimSpace(upload.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("title is required"))
	}

	docUUID := uuid.NewString()
	storageKey := docUUID + ext
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, upload.Body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		UUID:       docUUID,
		Title:      upload.Title,
		Department: upload.Department,
		Division:   upload.Division,
		Location:   storageKey,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishDocumentProcess(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish processing event: %w", err)
	}
	return doc, nil
}
