package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/apeSh1t/rag-research-assistant/internal/layout"
)

// Parser converts raw document bytes into page-tagged labeled lines.
type Parser interface {
	Parse(r io.Reader, filename string) ([]layout.Page, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// DefaultPDFFallback controls whether PDF parsers returned by ForFile shell
// out to pdftotext when library extraction fails. Set once at startup.
var DefaultPDFFallback = true

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: DefaultPDFFallback}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// headingLine builds a Markdown-marked heading line at the given level so
// downstream chunking is uniform across formats.
func headingLine(level int, title string) layout.Line {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return layout.Line{
		Text:     strings.Repeat("#", level) + " " + title,
		Category: layout.SectionHeader,
	}
}
