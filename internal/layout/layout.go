package layout

// Category classifies a line of extracted document text. The values mirror
// the layout labels produced by OCR-style extraction tools.
type Category string

const (
	Title         Category = "Title"
	SectionHeader Category = "Section-header"
	Text          Category = "Text"
	Table         Category = "Table"
	ListItem      Category = "List-item"
	Caption       Category = "Caption"
	Footnote      Category = "Footnote"
	Formula       Category = "Formula"
	Picture       Category = "Picture"
	PageHeader    Category = "Page-header"
	PageFooter    Category = "Page-footer"
)

// IsHeading reports whether the category participates in the heading hierarchy.
func (c Category) IsHeading() bool {
	return c == Title || c == SectionHeader
}

// Line is a single labeled line of extracted text.
type Line struct {
	Text     string
	Category Category
}

// Page is an ordered sequence of labeled lines from one source page.
type Page struct {
	Number int
	Lines  []Line
}

// Chunk is a retrievable unit of document text with structural metadata.
// HeadingChain holds the chunk indices of the ancestor headings, outermost
// first; it never contains the chunk's own index.
type Chunk struct {
	Index        int
	Text         string
	Category     Category
	PageNumber   int
	HeadingChain []int
	Caption      string
}
