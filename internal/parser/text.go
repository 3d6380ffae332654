package parser

import (
	"bufio"
	"io"

	"github.com/apeSh1t/rag-research-assistant/internal/layout"
)

// TextParser handles plain text files.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]layout.Page, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	page := layout.Page{Number: 1}
	for scanner.Scan() {
		page.Lines = append(page.Lines, layout.Line{
			Text:     scanner.Text(),
			Category: layout.Text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return []layout.Page{page}, nil
}
