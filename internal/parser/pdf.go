package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/apeSh1t/rag-research-assistant/internal/chunker"
	"github.com/apeSh1t/rag-research-assistant/internal/layout"
)

// PDFParser handles PDF files. It tries the Go library first, then falls back
// to pdftotext if available. Extracted lines carry no Markdown markers, so a
// heading heuristic decides which lines enter the hierarchy; flagged lines are
// rewritten with a synthetic '#' marker for uniform downstream handling.
type PDFParser struct {
	FallbackPdftotext bool

	// Headings overrides the default heuristic. Accuracy of heading
	// detection on extracted text varies per corpus, so it stays swappable.
	Headings chunker.HeadingDetector
}

func (p *PDFParser) Parse(r io.Reader, filename string) ([]layout.Page, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "rag-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pageTexts, err := extractPDFPages(tmpPath)
	if err != nil && p.FallbackPdftotext {
		pageTexts, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	detector := p.Headings
	if detector == nil {
		detector = chunker.HeuristicDetector{}
	}

	var pages []layout.Page
	for i, pageText := range pageTexts {
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		page := layout.Page{Number: i + 1}
		for _, line := range strings.Split(pageText, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			page.Lines = append(page.Lines, classifyExtractedLine(line, detector))
		}
		if len(page.Lines) > 0 {
			pages = append(pages, page)
		}
	}

	return pages, nil
}

// classifyExtractedLine labels one extracted line and rewrites detected
// headings with a '#' marker. Misclassification is tolerated: a missed
// heading simply becomes body text.
func classifyExtractedLine(line string, detector chunker.HeadingDetector) layout.Line {
	if strings.HasPrefix(line, "#") {
		return layout.Line{Text: line, Category: layout.SectionHeader}
	}
	if detector.IsHeading(line) {
		return layout.Line{Text: "# " + line, Category: layout.SectionHeader}
	}
	return layout.Line{Text: line, Category: layout.Text}
}

func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func extractPdftotext(path string) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	// pdftotext separates pages with form feeds.
	return strings.Split(string(out), "\f"), nil
}
