package converter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/chunking"
)

type PlaintextConverter struct {
	splitter *chunking.Splitter
}

func NewPlaintextConverter(chunkSize, overlap int) *PlaintextConverter {
	return &PlaintextConverter{splitter: chunking.NewSplitter(chunkSize, overlap)}
}

func (c *PlaintextConverter) Convert(_ context.Context, filePath string) ([]domain.Fragment, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("source is not valid utf-8: %s", filePath)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}

	var fragments []domain.Fragment
	for _, piece := range c.splitter.Split(text) {
		fragments = append(fragments, domain.Fragment{
			Text:     piece,
			Metadata: map[string]any{"extraction_method": "plaintext"},
		})
	}
	return fragments, nil
}
