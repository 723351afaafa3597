package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/core/ports"
)

// Registry dispatches conversion to the format converter registered for the
// file's extension.
type Registry struct {
	byExtension map[string]ports.Converter
}

func NewRegistry() *Registry {
	return &Registry{byExtension: make(map[string]ports.Converter)}
}

func (r *Registry) Register(extension string, conv ports.Converter) {
	r.byExtension[strings.ToLower(extension)] = conv
}

func (r *Registry) Convert(ctx context.Context, filePath string) ([]domain.Fragment, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	conv, ok := r.byExtension[ext]
	if !ok {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"convert document",
			fmt.Errorf("no converter registered for %q", ext),
		)
	}
	return conv.Convert(ctx, filePath)
}

// DefaultRegistry wires the built-in pdf, txt and xlsx converters with a
// shared fragment sizer.
func DefaultRegistry(chunkSize, overlap int) *Registry {
	registry := NewRegistry()
	registry.Register(".pdf", NewPDFConverter(chunkSize, overlap))
	registry.Register(".txt", NewPlaintextConverter(chunkSize, overlap))
	registry.Register(".xlsx", NewXLSXConverter(chunkSize, overlap))
	return registry
}
