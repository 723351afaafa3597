package domain

import (
	"fmt"
	"time"
)

// DocumentStatus is the persisted processing state of a document. The string
// values are the storage vocabulary and must not be renamed.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusChunked    DocumentStatus = "chunked"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// ParseDocumentStatus validates an externally supplied status string.
func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	status := DocumentStatus(raw)
	switch status {
	case StatusPending, StatusProcessing, StatusChunked, StatusCompleted, StatusError:
		return status, nil
	default:
		return "", fmt.Errorf("unknown document status %q", raw)
	}
}

// CanBeChunked reports whether chunking may start from this status.
// Re-chunking from chunked/error is allowed and appends new chunks.
func (s DocumentStatus) CanBeChunked() bool {
	switch s {
	case StatusPending, StatusError, StatusChunked:
		return true
	default:
		return false
	}
}

// CanBeEmbedded reports whether embedding generation may start from this status.
func (s DocumentStatus) CanBeEmbedded() bool {
	switch s {
	case StatusChunked, StatusError, StatusCompleted:
		return true
	default:
		return false
	}
}

type Document struct {
	ID         int64          `json:"id"`
	UUID       string         `json:"uuid"`
	Title      string         `json:"title"`
	Department string         `json:"department"`
	Division   string         `json:"division"`
	Location   string         `json:"location"`
	Status     DocumentStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
