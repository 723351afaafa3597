package domain

import "time"

// ChunkStatus tracks whether a chunk's vector has been stored.
// A chunk moves pending -> embedded exactly once per pipeline run.
type ChunkStatus string

const (
	ChunkPending  ChunkStatus = "pending"
	ChunkEmbedded ChunkStatus = "embedded"
)

type Chunk struct {
	ID         int64          `json:"id"`
	UUID       string         `json:"uuid"`
	DocumentID int64          `json:"document_id"`
	Content    string         `json:"content"`
	PageNumber *int           `json:"page_number,omitempty"`
	Metadata   map[string]any `json:"chunk_metadata,omitempty"`
	Status     ChunkStatus    `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Fragment is one unit of converter output: extracted text with optional page
// attribution and an opaque metadata blob passed through to the chunk.
type Fragment struct {
	Text       string
	PageNumber *int
	Metadata   map[string]any
}
