package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apeSh1t/rag-research-assistant/internal/chunker"
	"github.com/apeSh1t/rag-research-assistant/internal/knowledge"
	"github.com/apeSh1t/rag-research-assistant/internal/parser"
	"github.com/apeSh1t/rag-research-assistant/internal/vectorstore"
)

// Indexer is the write side of the vector store.
type Indexer interface {
	Add(ctx context.Context, records []vectorstore.Record) error
}

// Worker processes a single document job: parse, chunk, embed and index.
type Worker struct {
	store   Indexer
	chunker *chunker.Chunker
	log     *slog.Logger
}

func NewWorker(store Indexer, ch *chunker.Chunker, log *slog.Logger) *Worker {
	return &Worker{
		store:   store,
		chunker: ch,
		log:     log,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	source := job.Title
	if source == "" {
		source = job.Filename
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	pages, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := w.chunker.Chunk(pages)
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no indexable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 3: Embed and index. The store's Add is all-or-nothing, so a
	// retry after a transient embedding failure never double-writes.
	job.SetStatus(StatusIndexing, "indexing")
	records := knowledge.BuildRecords(chunks, source)

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		lastErr = w.store.Add(ctx, records)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable indexing error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			job.AddError(ctx.Err().Error())
			job.SetStatus(StatusFailed, "indexing")
			return
		}
	}
	if lastErr != nil {
		log.Error("indexing failed", "error", lastErr)
		job.AddError(fmt.Sprintf("index: %s", lastErr))
		job.SetStatus(StatusFailed, "indexing")
		return
	}

	job.SetChunksIndexed(len(records))
	job.SetStatus(StatusCompleted, "done")
	log.Info("ingestion complete", "chunks_indexed", len(records))
}
