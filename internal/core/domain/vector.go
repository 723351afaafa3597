package domain

// ChunkPoint is one vector-index upsert unit, keyed by the chunk's uuid so a
// re-run overwrites the point instead of duplicating it.
type ChunkPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}
