package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

const defaultSearchLimit = 5

// SearchUseCase runs semantic retrieval over embedded chunks.
type SearchUseCase struct {
	embedder ports.Embedder
	vectors  ports.VectorIndex
	topK     int
}

func NewSearchUseCase(embedder ports.Embedder, vectors ports.VectorIndex, topK int) *SearchUseCase {
	if topK <= 0 {
		topK = defaultSearchLimit
	}
	return &SearchUseCase{
		embedder: embedder,
		vectors:  vectors,
		topK:     topK,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if limit <= 0 {
		limit = uc.topK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := uc.vectors.Search(ctx, queryVector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}
