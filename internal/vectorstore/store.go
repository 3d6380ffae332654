package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/apeSh1t/rag-research-assistant/internal/embed"
)

// Metadata is the per-record sidecar payload. Field names are part of the
// on-disk format.
type Metadata struct {
	ChunkID      int    `json:"chunk_id"`
	Category     string `json:"category"`
	PageNo       int    `json:"page_no"`
	Source       string `json:"source"`
	OriginalText string `json:"original_text"`
	ContextStr   string `json:"context_str"`
}

// Record is one unit of insertion: the document string is what gets embedded,
// the metadata carries the display text and provenance.
type Record struct {
	ID       string
	Document string
	Metadata Metadata
}

// Result is one retrieval hit. Score follows the convention of the method
// that produced it: Retrieve returns cosine similarity (higher is better),
// SimilaritySearchWithScore returns a distance (lower is better).
type Result struct {
	ID       string
	Text     string
	Document string
	Metadata Metadata
	Score    float32
}

// Filter selects records by exact metadata match. Zero-valued string fields
// and nil int fields match everything.
type Filter struct {
	Source   string
	Category string
	ChunkID  *int
	PageNo   *int
}

func (f Filter) matches(m Metadata) bool {
	if f.Source != "" && m.Source != f.Source {
		return false
	}
	if f.Category != "" && m.Category != f.Category {
		return false
	}
	if f.ChunkID != nil && m.ChunkID != *f.ChunkID {
		return false
	}
	if f.PageNo != nil && m.PageNo != *f.PageNo {
		return false
	}
	return true
}

const defaultBatchSize = 5

// Store is a flat similarity index with index-aligned document, metadata and
// id sidecars. A single RWMutex serializes writers; the three sidecar slices
// and the index always share one length whenever the lock is released.
type Store struct {
	mu        sync.RWMutex
	log       *slog.Logger
	embedder  embed.Embedder
	batchSize int

	indexPath string
	metaPath  string

	index     *flatIndex
	documents []string
	metadatas []Metadata
	ids       []string
}

type metaFile struct {
	Documents []string   `json:"documents"`
	Metadatas []Metadata `json:"metadatas"`
	IDs       []string   `json:"ids"`
}

// New opens (or creates) the collection persisted under dir.
func New(dir, collection string, embedder embed.Embedder, batchSize int, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	s := &Store{
		log:       log,
		embedder:  embedder,
		batchSize: batchSize,
		indexPath: filepath.Join(dir, collection+".index"),
		metaPath:  filepath.Join(dir, collection+"_meta.json"),
		index:     &flatIndex{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.metaPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sidecar: %w", err)
	}

	var meta metaFile
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("decode sidecar: %w", err)
	}
	if len(meta.Documents) != len(meta.IDs) || len(meta.Metadatas) != len(meta.IDs) {
		return fmt.Errorf("sidecar arrays misaligned: %d documents, %d metadatas, %d ids",
			len(meta.Documents), len(meta.Metadatas), len(meta.IDs))
	}

	index := &flatIndex{}
	if len(meta.IDs) > 0 {
		index, err = readIndexFile(s.indexPath)
		if err != nil {
			return err
		}
		if index.count() != len(meta.IDs) {
			return fmt.Errorf("index/sidecar mismatch: %d vectors, %d ids", index.count(), len(meta.IDs))
		}
	}

	s.index = index
	s.documents = meta.Documents
	s.metadatas = meta.Metadatas
	s.ids = meta.IDs
	return nil
}

// persistLocked writes both files, sidecar last so a crash between the two
// is caught by the load-time alignment check.
func (s *Store) persistLocked() error {
	if s.index.count() > 0 {
		if err := s.index.writeFile(s.indexPath); err != nil {
			return err
		}
	} else if err := os.Remove(s.indexPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove index file: %w", err)
	}

	payload, err := json.MarshalIndent(metaFile{
		Documents: s.documents,
		Metadatas: s.metadatas,
		IDs:       s.ids,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}

	tmp := s.metaPath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, s.metaPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace sidecar: %w", err)
	}
	return nil
}

// Add embeds and inserts records in batches. The insert is all-or-nothing:
// any batch failure rolls the in-memory state back to the pre-call snapshot,
// and nothing is persisted until every batch has landed.
func (s *Store) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.ids)
	beforeDim := s.index.dim
	rollback := func() {
		s.index.vectors = s.index.vectors[:before]
		s.index.dim = beforeDim
		s.documents = s.documents[:before]
		s.metadatas = s.metadatas[:before]
		s.ids = s.ids[:before]
	}

	totalBatches := (len(records) + s.batchSize - 1) / s.batchSize
	for i := 0; i < len(records); i += s.batchSize {
		end := i + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]
		if s.log != nil {
			s.log.Debug("embedding batch",
				"batch", i/s.batchSize+1,
				"total_batches", totalBatches,
				"size", len(batch))
		}

		docs := make([]string, len(batch))
		for j, rec := range batch {
			docs[j] = rec.Document
		}
		vecs, err := s.embedder.Embed(ctx, docs)
		if err != nil {
			rollback()
			return fmt.Errorf("embed batch %d/%d: %w", i/s.batchSize+1, totalBatches, err)
		}
		if len(vecs) != len(batch) {
			rollback()
			return fmt.Errorf("embed batch %d/%d: got %d vectors for %d documents",
				i/s.batchSize+1, totalBatches, len(vecs), len(batch))
		}

		for _, v := range vecs {
			normalize(v)
		}
		if err := s.index.add(vecs); err != nil {
			rollback()
			return fmt.Errorf("index batch %d/%d: %w", i/s.batchSize+1, totalBatches, err)
		}
		for _, rec := range batch {
			s.documents = append(s.documents, rec.Document)
			s.metadatas = append(s.metadatas, rec.Metadata)
			s.ids = append(s.ids, rec.ID)
		}
	}

	if err := s.persistLocked(); err != nil {
		rollback()
		return err
	}
	if s.log != nil {
		s.log.Info("records added", "count", len(records), "total", len(s.ids))
	}
	return nil
}

// Retrieve returns up to topK hits scored by cosine similarity, best first.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if s.Count() == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}

	qv, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs, scores := s.index.search(qv, topK)
	results := make([]Result, 0, len(idxs))
	for i, idx := range idxs {
		results = append(results, Result{
			ID:       s.ids[idx],
			Text:     s.metadatas[idx].OriginalText,
			Document: s.documents[idx],
			Metadata: s.metadatas[idx],
			Score:    scores[i],
		})
	}
	return results, nil
}

// SimilaritySearchWithScore returns up to k hits scored as a distance
// (1 minus cosine similarity), best first. Lower is better.
func (s *Store) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]Result, error) {
	results, err := s.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Score = 1 - results[i].Score
	}
	return results, nil
}

func (s *Store) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	normalize(vecs[0])
	return vecs[0], nil
}

// Get returns all records matching the filter, in insertion order.
func (s *Store) Get(filter Filter) []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Result
	for i, meta := range s.metadatas {
		if !filter.matches(meta) {
			continue
		}
		results = append(results, Result{
			ID:       s.ids[i],
			Text:     meta.OriginalText,
			Document: s.documents[i],
			Metadata: meta,
		})
	}
	return results
}

// Delete removes records by id and/or filter and rebuilds the index from the
// surviving vectors. It returns the number of records removed.
func (s *Store) Delete(ids []string, filter *Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	if filter != nil {
		for i, meta := range s.metadatas {
			if filter.matches(meta) {
				doomed[s.ids[i]] = true
			}
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	keepIndex := &flatIndex{}
	var keepDocs []string
	var keepMeta []Metadata
	var keepIDs []string
	deleted := 0
	for i, id := range s.ids {
		if doomed[id] {
			deleted++
			continue
		}
		keepIndex.add([][]float32{s.index.vectors[i]})
		keepDocs = append(keepDocs, s.documents[i])
		keepMeta = append(keepMeta, s.metadatas[i])
		keepIDs = append(keepIDs, id)
	}
	if deleted == 0 {
		return 0, nil
	}

	prevIndex, prevDocs, prevMeta, prevIDs := s.index, s.documents, s.metadatas, s.ids
	s.index = keepIndex
	s.documents = keepDocs
	s.metadatas = keepMeta
	s.ids = keepIDs

	if err := s.persistLocked(); err != nil {
		s.index, s.documents, s.metadatas, s.ids = prevIndex, prevDocs, prevMeta, prevIDs
		return 0, err
	}
	if s.log != nil {
		s.log.Info("records deleted", "count", deleted, "remaining", len(s.ids))
	}
	return deleted, nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Sources returns the distinct source values present in the store, in first
// appearance order.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var sources []string
	for _, meta := range s.metadatas {
		if meta.Source == "" || seen[meta.Source] {
			continue
		}
		seen[meta.Source] = true
		sources = append(sources, meta.Source)
	}
	return sources
}
