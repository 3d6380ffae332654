package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"testing"
)

// fakeEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector otherwise. failAfter >= 0 makes the call with that
// ordinal fail.
type fakeEmbedder struct {
	vectors   map[string][]float32
	failAfter int
	calls     int
}

var errEmbedDown = errors.New("embedding service unavailable")

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}, failAfter: -1}
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.failAfter >= 0 && f.calls >= f.failAfter {
		return nil, errEmbedDown
	}
	f.calls++

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			cp := make([]float32, len(v))
			copy(cp, v)
			out[i] = cp
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(text))
		seed := h.Sum32()
		v := make([]float32, 4)
		for j := range v {
			seed = seed*1664525 + 1013904223
			v[j] = float32(seed%1000)/1000 + 0.001
		}
		out[i] = v
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, dir string, emb *fakeEmbedder) *Store {
	t.Helper()
	s, err := New(dir, "document_chunks", emb, 5, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func record(id, doc, source string, chunkID int) Record {
	return Record{
		ID:       id,
		Document: doc,
		Metadata: Metadata{
			ChunkID:      chunkID,
			Category:     "Text",
			PageNo:       1,
			Source:       source,
			OriginalText: doc,
		},
	}
}

func TestAddAndRetrieve_RanksBySimilarity(t *testing.T) {
	emb := newFakeEmbedder()
	emb.vectors["cats are mammals"] = []float32{1, 0, 0, 0}
	emb.vectors["go is a language"] = []float32{0, 1, 0, 0}
	emb.vectors["tell me about cats"] = []float32{0.9, 0.1, 0, 0}

	s := openStore(t, t.TempDir(), emb)
	err := s.Add(context.Background(), []Record{
		record("doc_chunk_0", "cats are mammals", "doc", 0),
		record("doc_chunk_1", "go is a language", "doc", 1),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	results, err := s.Retrieve(context.Background(), "tell me about cats", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "doc_chunk_0" {
		t.Errorf("expected best hit doc_chunk_0, got %s", results[0].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("expected descending scores, got %f then %f", results[0].Score, results[1].Score)
	}
	if results[0].Text != "cats are mammals" {
		t.Errorf("expected original text, got %q", results[0].Text)
	}
}

func TestRetrieve_EmptyStore(t *testing.T) {
	emb := newFakeEmbedder()
	emb.failAfter = 0 // any embedding call would error
	s := openStore(t, t.TempDir(), emb)

	results, err := s.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("expected nil error on empty store, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}

	results, err = s.SimilaritySearchWithScore(context.Background(), "anything", 5)
	if err != nil || len(results) != 0 {
		t.Errorf("expected empty search on empty store, got %d results, err=%v", len(results), err)
	}
}

func TestScoreConventions(t *testing.T) {
	emb := newFakeEmbedder()
	emb.vectors["alpha"] = []float32{1, 0, 0, 0}
	emb.vectors["beta"] = []float32{0, 1, 0, 0}
	emb.vectors["query"] = []float32{1, 0, 0, 0}

	s := openStore(t, t.TempDir(), emb)
	err := s.Add(context.Background(), []Record{
		record("d_chunk_0", "alpha", "d", 0),
		record("d_chunk_1", "beta", "d", 1),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	sim, err := s.Retrieve(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	dist, err := s.SimilaritySearchWithScore(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("similarity search: %v", err)
	}

	if sim[0].ID != dist[0].ID {
		t.Errorf("expected both conventions to agree on the best hit: %s vs %s", sim[0].ID, dist[0].ID)
	}
	for i := range sim {
		sum := float64(sim[i].Score + dist[i].Score)
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("result %d: similarity %f + distance %f != 1", i, sim[i].Score, dist[i].Score)
		}
	}
	if !(dist[0].Score < dist[1].Score) {
		t.Errorf("expected ascending distances, got %f then %f", dist[0].Score, dist[1].Score)
	}
}

func TestAdd_RollbackOnBatchFailure(t *testing.T) {
	emb := newFakeEmbedder()
	emb.failAfter = 1 // first batch succeeds, second fails
	s := openStore(t, t.TempDir(), emb)

	records := make([]Record, 8) // two batches at batch size 5
	for i := range records {
		records[i] = record(fmt.Sprintf("doc_chunk_%d", i), fmt.Sprintf("text %d", i), "doc", i)
	}

	err := s.Add(context.Background(), records)
	if !errors.Is(err, errEmbedDown) {
		t.Fatalf("expected embed failure, got %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("expected rollback to empty store, got %d records", s.Count())
	}
	if got := s.Get(Filter{}); len(got) != 0 {
		t.Errorf("expected no surviving records, got %d", len(got))
	}
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	emb := newFakeEmbedder()
	emb.vectors["unique fact about turtles"] = []float32{0, 0, 1, 0}
	emb.vectors["turtles?"] = []float32{0, 0, 1, 0}

	s := openStore(t, dir, emb)
	err := s.Add(context.Background(), []Record{
		record("t_chunk_0", "unique fact about turtles", "t", 0),
		record("t_chunk_1", "unrelated content", "t", 1),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	want, err := s.Retrieve(context.Background(), "turtles?", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	reopened := openStore(t, dir, emb)
	if reopened.Count() != 2 {
		t.Fatalf("expected 2 records after reopen, got %d", reopened.Count())
	}
	got, err := reopened.Retrieve(context.Background(), "turtles?", 2)
	if err != nil {
		t.Fatalf("retrieve after reopen: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("result %d: expected id %s, got %s", i, want[i].ID, got[i].ID)
		}
		if math.Abs(float64(got[i].Score-want[i].Score)) > 1e-5 {
			t.Errorf("result %d: expected score %f, got %f", i, want[i].Score, got[i].Score)
		}
	}
}

func TestDelete_BySourceAndIdempotence(t *testing.T) {
	dir := t.TempDir()
	emb := newFakeEmbedder()
	s := openStore(t, dir, emb)

	err := s.Add(context.Background(), []Record{
		record("a_chunk_0", "alpha zero", "a", 0),
		record("a_chunk_1", "alpha one", "a", 1),
		record("b_chunk_0", "beta zero", "b", 0),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	deleted, err := s.Delete(nil, &Filter{Source: "a"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 remaining, got %d", s.Count())
	}
	if got := s.Get(Filter{Source: "a"}); len(got) != 0 {
		t.Errorf("expected no records for source a, got %d", len(got))
	}

	// Second delete of the same source is a no-op.
	deleted, err = s.Delete(nil, &Filter{Source: "a"})
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted on repeat, got %d", deleted)
	}

	// Unknown source changes nothing.
	deleted, err = s.Delete(nil, &Filter{Source: "nope"})
	if err != nil || deleted != 0 {
		t.Errorf("expected no-op for unknown source, got deleted=%d err=%v", deleted, err)
	}

	// Survivors stay queryable after the rebuild, across a reopen.
	reopened := openStore(t, dir, emb)
	if reopened.Count() != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", reopened.Count())
	}
	results, err := reopened.Retrieve(context.Background(), "beta zero", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b_chunk_0" {
		t.Errorf("expected surviving b_chunk_0, got %v", results)
	}
}

func TestDelete_ToEmptyThenReadd(t *testing.T) {
	dir := t.TempDir()
	emb := newFakeEmbedder()
	s := openStore(t, dir, emb)

	if err := s.Add(context.Background(), []Record{record("x_chunk_0", "only record", "x", 0)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Delete([]string{"x_chunk_0"}, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("expected empty store, got %d", s.Count())
	}

	reopened := openStore(t, dir, emb)
	if reopened.Count() != 0 {
		t.Fatalf("expected empty store after reopen, got %d", reopened.Count())
	}
	if err := reopened.Add(context.Background(), []Record{record("y_chunk_0", "fresh record", "y", 0)}); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if reopened.Count() != 1 {
		t.Errorf("expected 1 record, got %d", reopened.Count())
	}
}

func TestGet_FilterMatching(t *testing.T) {
	emb := newFakeEmbedder()
	s := openStore(t, t.TempDir(), emb)

	recs := []Record{
		record("a_chunk_0", "one", "a", 0),
		record("a_chunk_1", "two", "a", 1),
		record("b_chunk_0", "three", "b", 0),
	}
	recs[2].Metadata.Category = "Section-header"
	if err := s.Add(context.Background(), recs); err != nil {
		t.Fatalf("add: %v", err)
	}

	if got := s.Get(Filter{}); len(got) != 3 {
		t.Errorf("empty filter: expected 3, got %d", len(got))
	}
	if got := s.Get(Filter{Source: "a"}); len(got) != 2 {
		t.Errorf("source filter: expected 2, got %d", len(got))
	}
	chunkID := 0
	if got := s.Get(Filter{Source: "a", ChunkID: &chunkID}); len(got) != 1 || got[0].ID != "a_chunk_0" {
		t.Errorf("combined filter: expected a_chunk_0, got %v", got)
	}
	if got := s.Get(Filter{Category: "Section-header"}); len(got) != 1 || got[0].ID != "b_chunk_0" {
		t.Errorf("category filter: expected b_chunk_0, got %v", got)
	}

	sources := s.Sources()
	if len(sources) != 2 || sources[0] != "a" || sources[1] != "b" {
		t.Errorf("expected sources [a b], got %v", sources)
	}
}
