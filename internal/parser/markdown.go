package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/apeSh1t/rag-research-assistant/internal/layout"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) ([]layout.Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	// Markdown has no page structure; everything lands on page 1.
	page := layout.Page{Number: 1}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := string(node.Text(src))
			if title == "" {
				continue
			}
			page.Lines = append(page.Lines, headingLine(node.Level, title))
		default:
			t := extractText(n, src)
			if t == "" {
				continue
			}
			category := blockCategory(n)
			for _, line := range strings.Split(t, "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				page.Lines = append(page.Lines, layout.Line{Text: line, Category: category})
			}
		}
	}

	return []layout.Page{page}, nil
}

func blockCategory(n ast.Node) layout.Category {
	switch n.(type) {
	case *ast.List:
		return layout.ListItem
	default:
		return layout.Text
	}
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	// Also handle inline children.
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			// Recurse for nested inlines and list items.
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
