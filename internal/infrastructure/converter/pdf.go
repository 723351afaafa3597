package converter

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/chunking"
)

// PDFConverter extracts text page by page so every fragment keeps its page
// attribution for search results.
type PDFConverter struct {
	splitter *chunking.Splitter
}

func NewPDFConverter(chunkSize, overlap int) *PDFConverter {
	return &PDFConverter{splitter: chunking.NewSplitter(chunkSize, overlap)}
}

func (c *PDFConverter) Convert(_ context.Context, filePath string) ([]domain.Fragment, error) {
	file, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var fragments []domain.Fragment
	for pageNo := 1; pageNo <= reader.NumPage(); pageNo++ {
		page := reader.Page(pageNo)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", pageNo, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pageCopy := pageNo
		for _, piece := range c.splitter.Split(text) {
			fragments = append(fragments, domain.Fragment{
				Text:       piece,
				PageNumber: &pageCopy,
				Metadata:   map[string]any{"extraction_method": "pdf"},
			})
		}
	}
	return fragments, nil
}
