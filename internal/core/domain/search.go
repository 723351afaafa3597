package domain

// SearchFilter narrows semantic search to organizational attributes.
type SearchFilter struct {
	Division   string `json:"division,omitempty"`
	Department string `json:"department,omitempty"`
}

// RetrievedChunk is one scored semantic-search hit.
type RetrievedChunk struct {
	ChunkID    int64   `json:"chunk_id"`
	ChunkUUID  string  `json:"chunk_uuid"`
	DocumentID int64   `json:"document_id"`
	Document   string  `json:"document_name"`
	Division   string  `json:"division"`
	Department string  `json:"department"`
	PageNumber *int    `json:"page_number,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}
