package uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps raw uploaded files on local disk, one file per distinct content
// hash. The hash doubles as the document id, so re-uploading identical bytes
// is detected without comparing file contents.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// SaveResult describes where an upload landed.
type SaveResult struct {
	DocID     string
	Path      string
	Duplicate bool
}

// Save stores the content under its sha256 hash, keeping the original
// extension. If the same bytes were saved before, the existing file is
// reported instead of rewritten.
func (s *Store) Save(filename string, content []byte) (SaveResult, error) {
	sum := sha256.Sum256(content)
	docID := hex.EncodeToString(sum[:])
	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(s.dir, docID+ext)

	if _, err := os.Stat(path); err == nil {
		s.log.Info("duplicate upload skipped", "doc_id", docID, "filename", filename)
		return SaveResult{DocID: docID, Path: path, Duplicate: true}, nil
	} else if !os.IsNotExist(err) {
		return SaveResult{}, fmt.Errorf("stat upload: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return SaveResult{}, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("finalize upload: %w", err)
	}

	s.log.Info("upload stored", "doc_id", docID, "filename", filename, "bytes", len(content))
	return SaveResult{DocID: docID, Path: path}, nil
}

// Find returns the stored path for a document id, if present.
func (s *Store) Find(docID string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(s.dir, docID+".*"))
	if err != nil || len(matches) == 0 {
		// An extension-less upload is stored as the bare hash.
		bare := filepath.Join(s.dir, docID)
		if _, statErr := os.Stat(bare); statErr == nil {
			return bare, true
		}
		return "", false
	}
	return matches[0], true
}

// Delete removes the stored file for a document id. Missing files are not an
// error.
func (s *Store) Delete(docID string) error {
	path, ok := s.Find(docID)
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}
