package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/apeSh1t/rag-research-assistant/internal/layout"
)

// CSVParser handles CSV files.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) ([]layout.Page, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	page := layout.Page{Number: 1}
	if len(records) == 0 {
		return []layout.Page{page}, nil
	}

	// First row is headers.
	headers := records[0]

	// Group rows into batches so each batch can become its own section.
	const batchSize = 20
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += batchSize {
		end := i + batchSize
		if end > len(dataRows) {
			end = len(dataRows)
		}

		// 1-indexed row numbers, accounting for the header row.
		page.Lines = append(page.Lines, headingLine(1, fmt.Sprintf("Rows %d-%d", i+2, end+1)))

		for _, row := range dataRows[i:end] {
			var text strings.Builder
			for j, cell := range row {
				if j > 0 {
					text.WriteString(", ")
				}
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
			}
			page.Lines = append(page.Lines, layout.Line{Text: text.String(), Category: layout.Table})
		}
	}

	return []layout.Page{page}, nil
}
