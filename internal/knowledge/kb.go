package knowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/apeSh1t/rag-research-assistant/internal/chunker"
	"github.com/apeSh1t/rag-research-assistant/internal/layout"
	"github.com/apeSh1t/rag-research-assistant/internal/parser"
	"github.com/apeSh1t/rag-research-assistant/internal/vectorstore"
)

// VectorStore is the slice of the store the knowledge base needs.
type VectorStore interface {
	Add(ctx context.Context, records []vectorstore.Record) error
	Retrieve(ctx context.Context, query string, topK int) ([]vectorstore.Result, error)
	Delete(ids []string, filter *vectorstore.Filter) (int, error)
	Get(filter vectorstore.Filter) []vectorstore.Result
	Sources() []string
}

// KnowledgeBase ties parsing, chunking and the vector store together behind
// one ingestion and retrieval surface.
type KnowledgeBase struct {
	log      *slog.Logger
	store    VectorStore
	chunker  *chunker.Chunker
	topK     int
	minScore float32
}

// New constructs a knowledge base. topK defaults to 3; minScore is the
// minimum cosine similarity a hit needs to appear in Retrieve output.
func New(store VectorStore, ch *chunker.Chunker, topK int, minScore float32, log *slog.Logger) *KnowledgeBase {
	if topK <= 0 {
		topK = 3
	}
	return &KnowledgeBase{
		log:      log,
		store:    store,
		chunker:  ch,
		topK:     topK,
		minScore: minScore,
	}
}

// AddResult reports the outcome of one document ingestion.
type AddResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

// AddDocument parses, chunks, embeds and indexes one document. The filename
// doubles as the document title and the source value on every stored chunk.
// Unsupported formats are reported in the result, not as an error.
func (kb *KnowledgeBase) AddDocument(ctx context.Context, filename string, r io.Reader) (AddResult, error) {
	if !parser.IsSupportedExtension(filename) {
		return AddResult{
			Success: false,
			Message: fmt.Sprintf("unsupported file format: %s", filename),
		}, nil
	}

	p, err := parser.ForFile(filename)
	if err != nil {
		return AddResult{Success: false, Message: err.Error()}, nil
	}

	pages, err := p.Parse(r, filename)
	if err != nil {
		return AddResult{}, fmt.Errorf("parse %s: %w", filename, err)
	}

	chunks := kb.chunker.Chunk(pages)
	if len(chunks) == 0 {
		return AddResult{
			Success: false,
			Message: "no indexable content found",
		}, nil
	}

	records := BuildRecords(chunks, filename)
	if err := kb.store.Add(ctx, records); err != nil {
		return AddResult{}, fmt.Errorf("index %s: %w", filename, err)
	}

	kb.log.Info("document indexed", "source", filename, "chunks", len(records))
	return AddResult{
		Success: true,
		Message: "document indexed",
		Chunks:  len(records),
	}, nil
}

// BuildRecords turns a chunk map into store records in chunk-index order.
// The embedded document carries the heading path as leading context; the
// metadata keeps the bare chunk text for display.
func BuildRecords(chunks map[int]layout.Chunk, source string) []vectorstore.Record {
	indices := make([]int, 0, len(chunks))
	for idx := range chunks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	records := make([]vectorstore.Record, 0, len(indices))
	for _, idx := range indices {
		chunk := chunks[idx]
		contextStr := chunker.HeadingPath(chunks, chunk.HeadingChain)

		var doc strings.Builder
		if contextStr != "" {
			doc.WriteString("Context: ")
			doc.WriteString(contextStr)
			doc.WriteString("\n")
		}
		doc.WriteString("Content: ")
		doc.WriteString(chunk.Text)

		records = append(records, vectorstore.Record{
			ID:       fmt.Sprintf("%s_chunk_%d", source, idx),
			Document: doc.String(),
			Metadata: vectorstore.Metadata{
				ChunkID:      idx,
				Category:     string(chunk.Category),
				PageNo:       chunk.PageNumber,
				Source:       source,
				OriginalText: chunk.Text,
				ContextStr:   contextStr,
			},
		})
	}
	return records
}

// Retrieve searches the store and renders the hits as one formatted block for
// prompt injection. Hits below the relevance floor are dropped; an empty
// result yields a canned message rather than an empty string.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, query string) (string, error) {
	results, err := kb.store.Retrieve(ctx, query, kb.topK)
	if err != nil {
		return "", fmt.Errorf("retrieve %q: %w", query, err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No information found for '%s'", query), nil
	}

	var sections []string
	for _, res := range results {
		kb.log.Debug("retrieval hit", "source", res.Metadata.Source, "score", res.Score)
		if res.Score < kb.minScore {
			continue
		}
		var block strings.Builder
		fmt.Fprintf(&block, "[%s] (Score: %.4f)\n", res.Metadata.Source, res.Score)
		if res.Metadata.ContextStr != "" {
			fmt.Fprintf(&block, "Context: %s\n", res.Metadata.ContextStr)
		}
		block.WriteString(res.Text)
		sections = append(sections, block.String())
	}
	if len(sections) == 0 {
		return fmt.Sprintf("No highly relevant information found for '%s'", query), nil
	}
	return strings.Join(sections, "\n\n"), nil
}

// DeleteDocument removes every chunk indexed under the given title. It
// reports whether anything was actually deleted.
func (kb *KnowledgeBase) DeleteDocument(title string) (bool, error) {
	deleted, err := kb.store.Delete(nil, &vectorstore.Filter{Source: title})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", title, err)
	}
	if deleted > 0 {
		kb.log.Info("document deleted", "source", title, "chunks", deleted)
	}
	return deleted > 0, nil
}

// DocumentInfo summarizes one indexed document.
type DocumentInfo struct {
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

// ListDocuments returns every indexed document with its chunk count.
func (kb *KnowledgeBase) ListDocuments() []DocumentInfo {
	var docs []DocumentInfo
	for _, source := range kb.store.Sources() {
		matched := kb.store.Get(vectorstore.Filter{Source: source})
		docs = append(docs, DocumentInfo{Title: source, Chunks: len(matched)})
	}
	return docs
}
