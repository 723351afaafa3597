package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// AddChunks inserts the given chunks in one transaction. Callers batch their
// input; a failed call rolls back only its own chunks, never earlier batches.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		row := tx.QueryRowContext(ctx, `
INSERT INTO chunks (uuid, document_id, content, page_number, metadata, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id
`,
			chunk.UUID, chunk.DocumentID, chunk.Content, chunk.PageNumber,
			metadataJSON, string(chunk.Status), chunk.CreatedAt, chunk.UpdatedAt,
		)
		if err := row.Scan(&chunk.ID); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListPending(ctx context.Context, documentID int64) ([]*domain.Chunk, error) {
	return r.list(ctx, `
SELECT id, uuid, document_id, content, page_number, metadata, status, created_at, updated_at
FROM chunks
WHERE document_id = $1 AND status = $2
ORDER BY id
`, documentID, string(domain.ChunkPending))
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID int64) ([]*domain.Chunk, error) {
	return r.list(ctx, `
SELECT id, uuid, document_id, content, page_number, metadata, status, created_at, updated_at
FROM chunks
WHERE document_id = $1
ORDER BY id
`, documentID)
}

func (r *ChunkRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Chunk, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var chunk domain.Chunk
		var metadataRaw []byte
		var status string

		err := rows.Scan(
			&chunk.ID, &chunk.UUID, &chunk.DocumentID, &chunk.Content, &chunk.PageNumber,
			&metadataRaw, &status, &chunk.CreatedAt, &chunk.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		chunk.Status = domain.ChunkStatus(status)
		chunks = append(chunks, &chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) MarkEmbedded(ctx context.Context, chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE chunks
SET status = $1, updated_at = $2
WHERE id = ANY($3::bigint[])
`, string(domain.ChunkEmbedded), time.Now().UTC(), idArray(chunkIDs))
	if err != nil {
		return fmt.Errorf("mark chunks embedded: %w", err)
	}
	return nil
}

func (r *ChunkRepository) CountPending(ctx context.Context, documentID int64) (int, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM chunks WHERE document_id = $1 AND status = $2
`, documentID, string(domain.ChunkPending))

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending chunks: %w", err)
	}
	return count, nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func idArray(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
