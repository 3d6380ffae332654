package chunker

import (
	"sort"
	"strings"

	"github.com/apeSh1t/rag-research-assistant/internal/layout"
)

// Config controls chunking behavior. Sizes are character counts.
type Config struct {
	ChunkSize    int // Max characters per text chunk.
	ChunkOverlap int // Max characters carried into the next chunk.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    500,
		ChunkOverlap: 50,
	}
}

// Chunker splits page-tagged labeled lines into chunks while preserving the
// heading hierarchy: every chunk records the chunk indices of its ancestor
// headings, outermost first.
type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 50
	}
	return &Chunker{cfg: cfg}
}

// headingContext maps heading level to the chunk index of the most recent
// heading seen at that level. When a heading at level L arrives, all entries
// at level L or deeper are evicted first, so stale subsections never leak
// into later siblings' ancestor chains.
type headingContext map[int]int

func (h headingContext) update(level, chunkIdx int) {
	for l := range h {
		if l >= level {
			delete(h, l)
		}
	}
	h[level] = chunkIdx
}

// snapshot returns the current ancestor chain, outermost level first.
func (h headingContext) snapshot() []int {
	if len(h) == 0 {
		return nil
	}
	levels := make([]int, 0, len(h))
	for l := range h {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	chain := make([]int, len(levels))
	for i, l := range levels {
		chain[i] = h[l]
	}
	return chain
}

type bufferedLine struct {
	text     string
	category layout.Category
	page     int
}

// Chunk flattens the pages into one ordered line sequence and walks it,
// emitting heading chunks and size-bounded text chunks. The returned map is
// keyed by chunk index; indices are dense, starting at 0.
//
// Heading detection takes precedence over size-based splitting: a line whose
// category is a heading type, or whose text starts with '#', always becomes
// its own chunk. Empty lines are skipped entirely.
func (c *Chunker) Chunk(pages []layout.Page) map[int]layout.Chunk {
	chunks := make(map[int]layout.Chunk)
	ctx := make(headingContext)

	var buffer []bufferedLine
	bufLen := 0
	nextIdx := 0

	finalize := func() {
		if len(buffer) == 0 {
			return
		}
		texts := make([]string, len(buffer))
		for i, bl := range buffer {
			texts[i] = bl.text
		}
		chunks[nextIdx] = layout.Chunk{
			Index:        nextIdx,
			Text:         strings.Join(texts, "\n"),
			Category:     buffer[0].category,
			PageNumber:   buffer[0].page,
			HeadingChain: ctx.snapshot(),
		}
		nextIdx++
		buffer = nil
		bufLen = 0
	}

	for _, page := range pages {
		for _, line := range page.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}

			if line.Category.IsHeading() || strings.HasPrefix(text, "#") {
				// Text never spans a heading boundary.
				finalize()

				level := HeadingLevel(text)
				if level == 0 {
					level = 1
				}

				// The heading's own chain is a snapshot of its ancestors,
				// taken before the context is updated with the heading itself.
				idx := nextIdx
				chunks[idx] = layout.Chunk{
					Index:        idx,
					Text:         text,
					Category:     line.Category,
					PageNumber:   page.Number,
					HeadingChain: ctx.snapshot(),
				}
				nextIdx++
				ctx.update(level, idx)
				continue
			}

			// bufLen tracks the joined chunk length, newline separators
			// included, so the size test matches what finalize emits.
			if len(buffer) > 0 && bufLen+1+len(text) > c.cfg.ChunkSize {
				prev := buffer
				finalize()
				// Carry a trailing overlap window into the new buffer.
				carry := overlapWindow(prev, c.cfg.ChunkOverlap)
				buffer = carry
				bufLen = joinedLen(carry)
			}

			if len(buffer) > 0 {
				bufLen++
			}
			buffer = append(buffer, bufferedLine{text: text, category: line.Category, page: page.Number})
			bufLen += len(text)
		}
	}

	finalize()
	return chunks
}

// joinedLen returns the length of the lines joined with "\n".
func joinedLen(lines []bufferedLine) int {
	if len(lines) == 0 {
		return 0
	}
	total := len(lines) - 1
	for _, bl := range lines {
		total += len(bl.text)
	}
	return total
}

// overlapWindow returns the trailing lines whose combined length stays below
// the overlap budget, preserving order.
func overlapWindow(lines []bufferedLine, overlap int) []bufferedLine {
	if overlap <= 0 {
		return nil
	}
	total := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if total+len(lines[i].text) >= overlap {
			break
		}
		total += len(lines[i].text)
		start = i
	}
	if start == len(lines) {
		return nil
	}
	out := make([]bufferedLine, len(lines)-start)
	copy(out, lines[start:])
	return out
}

// HeadingPath renders a chunk's ancestor chain as a display path like
// "Results > Revenue > Q4". Indices missing from the chunk map are skipped.
func HeadingPath(chunks map[int]layout.Chunk, chain []int) string {
	if len(chain) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chain))
	for _, idx := range chain {
		h, ok := chunks[idx]
		if !ok {
			continue
		}
		if t := HeadingText(h.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " > ")
}
