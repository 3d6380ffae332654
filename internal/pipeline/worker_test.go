package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/apeSh1t/rag-research-assistant/internal/chunker"
	"github.com/apeSh1t/rag-research-assistant/internal/embed"
	"github.com/apeSh1t/rag-research-assistant/internal/vectorstore"
)

var (
	errNotRetryable     = errors.New("permanent failure")
	errRetryable        = &embed.RetryableError{StatusCode: 429, Message: "slow down"}
	errWrappedRetryable = fmt.Errorf("index: %w", errRetryable)
)

// fakeIndexer counts Add calls and fails the first failFirst of them.
type fakeIndexer struct {
	added     []vectorstore.Record
	calls     int
	failFirst int
	err       error
}

func (f *fakeIndexer) Add(_ context.Context, records []vectorstore.Record) error {
	f.calls++
	if f.calls <= f.failFirst {
		return f.err
	}
	f.added = append(f.added, records...)
	return nil
}

func newWorker(store Indexer) *Worker {
	return NewWorker(store, chunker.New(chunker.DefaultConfig()), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newJob(filename string, data []byte) *Job {
	job := &Job{
		ID:        "job-1",
		DocID:     "doc-1",
		Status:    StatusQueued,
		Filename:  filename,
		Title:     filename,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	job.SetFileData(data)
	return job
}

func TestWorker_ProcessSuccess(t *testing.T) {
	store := &fakeIndexer{}
	w := newWorker(store)

	job := newJob("notes.txt", []byte("line one\nline two"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (errors: %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.TotalChunks == 0 || snap.Progress.ChunksIndexed != snap.Progress.TotalChunks {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if len(store.added) != snap.Progress.TotalChunks {
		t.Errorf("expected %d records in store, got %d", snap.Progress.TotalChunks, len(store.added))
	}
	if store.added[0].Metadata.Source != "notes.txt" {
		t.Errorf("expected source notes.txt, got %s", store.added[0].Metadata.Source)
	}
}

func TestWorker_ProcessUnsupportedFormat(t *testing.T) {
	w := newWorker(&fakeIndexer{})

	job := newJob("image.png", []byte{0x89})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Errorf("expected failed in parsing, got %s/%s", snap.Status, snap.Phase)
	}
}

func TestWorker_ProcessEmptyDocument(t *testing.T) {
	w := newWorker(&fakeIndexer{})

	job := newJob("empty.txt", []byte("  \n \n"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "chunking" {
		t.Errorf("expected failed in chunking, got %s/%s", snap.Status, snap.Phase)
	}
}

func TestWorker_RetriesTransientErrors(t *testing.T) {
	store := &fakeIndexer{failFirst: 1, err: errWrappedRetryable}
	w := newWorker(store)

	job := newJob("notes.txt", []byte("retry me"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed after retry, got %s (errors: %v)", snap.Status, snap.Progress.Errors)
	}
	if store.calls != 2 {
		t.Errorf("expected 2 add attempts, got %d", store.calls)
	}
}

func TestWorker_PermanentErrorFailsImmediately(t *testing.T) {
	store := &fakeIndexer{failFirst: 10, err: errNotRetryable}
	w := newWorker(store)

	job := newJob("notes.txt", []byte("doomed"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "indexing" {
		t.Fatalf("expected failed in indexing, got %s/%s", snap.Status, snap.Phase)
	}
	if store.calls != 1 {
		t.Errorf("expected a single attempt for a permanent error, got %d", store.calls)
	}
}
