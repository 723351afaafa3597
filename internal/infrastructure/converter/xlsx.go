package converter

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dkovalenko/document-pipeline/internal/core/domain"
	"github.com/dkovalenko/document-pipeline/internal/infrastructure/chunking"
)

// XLSXConverter flattens each sheet into tab-separated rows; the sheet name
// is carried in fragment metadata since spreadsheets have no page numbers.
type XLSXConverter struct {
	splitter *chunking.Splitter
}

func NewXLSXConverter(chunkSize, overlap int) *XLSXConverter {
	return &XLSXConverter{splitter: chunking.NewSplitter(chunkSize, overlap)}
}

func (c *XLSXConverter) Convert(_ context.Context, filePath string) ([]domain.Fragment, error) {
	file, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer file.Close()

	var fragments []domain.Fragment
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		text := strings.Join(lines, "\n")
		if text == "" {
			continue
		}

		for _, piece := range c.splitter.Split(text) {
			fragments = append(fragments, domain.Fragment{
				Text: piece,
				Metadata: map[string]any{
					"extraction_method": "xlsx",
					"sheet":             sheet,
				},
			})
		}
	}
	return fragments, nil
}
