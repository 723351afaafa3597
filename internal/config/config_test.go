package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_BATCH_SIZE", "")
	t.Setenv("EMBED_BATCH_SIZE", "")
	t.Setenv("SEARCH_TOP_K", "")
	t.Setenv("OLLAMA_REQUIRED_MODELS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkBatchSize != 5 {
		t.Fatalf("expected default chunk batch size 5, got %d", cfg.ChunkBatchSize)
	}
	if cfg.EmbedBatchSize != 20 {
		t.Fatalf("expected default embed batch size 20, got %d", cfg.EmbedBatchSize)
	}
	if cfg.SearchTopK != 5 {
		t.Fatalf("expected default search top k 5, got %d", cfg.SearchTopK)
	}
	models := cfg.RequiredModels()
	if len(models) != 1 || models[0] != "nomic-embed-text" {
		t.Fatalf("unexpected required models: %v", models)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_BATCH_SIZE", "10")
	t.Setenv("EMBED_BATCH_SIZE", "50")
	t.Setenv("OLLAMA_REQUIRED_MODELS", "nomic-embed-text, llama3.1:8b")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkBatchSize != 10 {
		t.Fatalf("expected chunk batch size 10, got %d", cfg.ChunkBatchSize)
	}
	if cfg.EmbedBatchSize != 50 {
		t.Fatalf("expected embed batch size 50, got %d", cfg.EmbedBatchSize)
	}
	models := cfg.RequiredModels()
	if len(models) != 2 || models[1] != "llama3.1:8b" {
		t.Fatalf("unexpected required models: %v", models)
	}
}

func TestLoadKeepsDefaultOnMalformedNumericEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_BATCH_SIZE", "abc")
	t.Setenv("OLLAMA_EMBED_RPS", "fast")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkBatchSize != 5 {
		t.Fatalf("malformed int env must keep default 5, got %d", cfg.ChunkBatchSize)
	}
	if cfg.OllamaEmbedRPS != 0 {
		t.Fatalf("malformed float env must keep default 0, got %v", cfg.OllamaEmbedRPS)
	}
}

func TestLoadMergesYAMLFileUnderEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	content := []byte("chunk_batch_size: 7\nqdrant_collection: docs\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QDRANT_COLLECTION", "env-wins")
	t.Setenv("CHUNK_BATCH_SIZE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ChunkBatchSize != 7 {
		t.Fatalf("expected file value 7, got %d", cfg.ChunkBatchSize)
	}
	if cfg.QdrantCollection != "env-wins" {
		t.Fatalf("env must override file, got %q", cfg.QdrantCollection)
	}
}
