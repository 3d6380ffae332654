package uploads

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSave_NewAndDuplicate(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Save("paper.pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.Duplicate {
		t.Errorf("first save reported as duplicate")
	}
	if !strings.HasSuffix(first.Path, first.DocID+".pdf") {
		t.Errorf("unexpected path %q for doc %q", first.Path, first.DocID)
	}
	if _, err := os.Stat(first.Path); err != nil {
		t.Errorf("stored file missing: %v", err)
	}

	// Same bytes under a different name dedupe to the same document.
	second, err := s.Save("renamed.pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("save duplicate: %v", err)
	}
	if !second.Duplicate {
		t.Errorf("expected duplicate=true")
	}
	if second.DocID != first.DocID {
		t.Errorf("expected same doc id, got %s vs %s", second.DocID, first.DocID)
	}

	// Different bytes get a different id.
	third, err := s.Save("paper.pdf", []byte("other bytes"))
	if err != nil {
		t.Fatalf("save distinct: %v", err)
	}
	if third.Duplicate || third.DocID == first.DocID {
		t.Errorf("distinct content treated as duplicate")
	}
}

func TestFindAndDelete(t *testing.T) {
	s := newTestStore(t)

	res, err := s.Save("notes.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	path, ok := s.Find(res.DocID)
	if !ok || path != res.Path {
		t.Fatalf("find: ok=%v path=%q, want %q", ok, path, res.Path)
	}

	if err := s.Delete(res.DocID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Find(res.DocID); ok {
		t.Errorf("expected file gone after delete")
	}

	// Deleting again is a no-op.
	if err := s.Delete(res.DocID); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestFind_Unknown(t *testing.T) {
	s := newTestStore(t)
	if _, ok := s.Find("deadbeef"); ok {
		t.Errorf("expected unknown doc id to be absent")
	}
}
