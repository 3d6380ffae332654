package parser

import (
	"strings"
	"testing"

	"github.com/apeSh1t/rag-research-assistant/internal/layout"
)

func parseLines(t *testing.T, p Parser, input, filename string) []layout.Line {
	t.Helper()
	pages, err := p.Parse(strings.NewReader(input), filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var lines []layout.Line
	for _, page := range pages {
		lines = append(lines, page.Lines...)
	}
	return lines
}

func TestMarkdownParser_HeadingLevels(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	lines := parseLines(t, &MarkdownParser{}, input, "doc.md")

	want := []layout.Line{
		{Text: "# Title", Category: layout.SectionHeader},
		{Text: "Intro text.", Category: layout.Text},
		{Text: "## Section A", Category: layout.SectionHeader},
		{Text: "Section A content.", Category: layout.Text},
		{Text: "### Subsection A1", Category: layout.SectionHeader},
		{Text: "Subsection A1 content.", Category: layout.Text},
		{Text: "## Section B", Category: layout.SectionHeader},
		{Text: "Section B content.", Category: layout.Text},
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line[%d]: expected %+v, got %+v", i, w, lines[i])
		}
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	lines := parseLines(t, &MarkdownParser{}, input, "plain.md")

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if line.Category != layout.Text {
			t.Errorf("expected category %q, got %q", layout.Text, line.Category)
		}
	}
	if lines[0].Text != "Just some plain text." {
		t.Errorf("unexpected first line %q", lines[0].Text)
	}
	if lines[1].Text != "Another paragraph here." {
		t.Errorf("unexpected second line %q", lines[1].Text)
	}
}

func TestMarkdownParser_ListItems(t *testing.T) {
	input := "# Tools\n\n- hammer\n- wrench\n"

	lines := parseLines(t, &MarkdownParser{}, input, "tools.md")

	var items []layout.Line
	for _, line := range lines {
		if line.Category == layout.ListItem {
			items = append(items, line)
		}
	}
	if len(items) == 0 {
		t.Fatalf("expected list items, got lines %v", lines)
	}
}

func TestMarkdownParser_CodeBlocksKeptAsText(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	lines := parseLines(t, &MarkdownParser{}, input, "api.md")

	joined := make([]string, 0, len(lines))
	for _, line := range lines {
		joined = append(joined, line.Text)
	}
	all := strings.Join(joined, "\n")
	if !strings.Contains(all, "GET /api/users") {
		t.Errorf("expected code block content, got %q", all)
	}
	if !strings.Contains(all, "More text after code.") {
		t.Errorf("expected post-code text, got %q", all)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	lines := parseLines(t, &MarkdownParser{}, "", "empty.md")
	if len(lines) != 0 {
		t.Errorf("expected 0 lines for empty input, got %d", len(lines))
	}
}

func TestMarkdownParser_SinglePage(t *testing.T) {
	p := &MarkdownParser{}
	pages, err := p.Parse(strings.NewReader("# A\n\ntext\n"), "a.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 {
		t.Errorf("expected page number 1, got %d", pages[0].Number)
	}
}
