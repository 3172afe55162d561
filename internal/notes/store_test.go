package notes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_AppendAndLoad(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Append("student-1", "mixes up len() and range()"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append("student-1", "improving on recursion"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.Load("student-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Note != "mixes up len() and range()" {
		t.Fatalf("entry order wrong: %+v", entries)
	}
	if entries[0].Timestamp.IsZero() {
		t.Fatal("entries must be timestamped")
	}
}

func TestStore_LoadMissingUser(t *testing.T) {
	store := NewStore(t.TempDir())
	entries, err := store.Load("nobody")
	if err != nil {
		t.Fatalf("missing file is not an error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestStore_LookupFirstMatchWins(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Append("second", "note for second"); err != nil {
		t.Fatal(err)
	}

	text, ok := store.Lookup("first", "second", "third")
	if !ok {
		t.Fatal("lookup must find the second user's notes")
	}
	if !strings.Contains(text, "note for second") {
		t.Fatalf("lookup text = %q", text)
	}

	if _, ok := store.Lookup("nobody", "also-nobody"); ok {
		t.Fatal("lookup without notes must report no match")
	}
}

func TestStore_MalformedLineSkipped(t *testing.T) {
	dir := t.TempDir()
	content := `{"ts":"2026-01-15T10:00:00Z","note":"valid one"}
this line is garbage
{"ts":"2026-01-16T10:00:00Z","note":"valid two"}
`
	if err := os.WriteFile(filepath.Join(dir, "u1.jsonl"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir)
	entries, err := store.Load("u1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// The corrupt line loses one note, never the whole file
	if len(entries) != 2 {
		t.Fatalf("expected 2 valid entries, got %d", len(entries))
	}
}

func TestStore_InvalidateRereadsDisk(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := store.Append("u1", "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("u1"); err != nil {
		t.Fatal(err)
	}

	// Simulate an external edit the cache does not know about
	line := `{"ts":"` + time.Now().Format(time.RFC3339) + `","note":"external"}` + "\n"
	f, err := os.OpenFile(filepath.Join(dir, "u1.jsonl"), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(line); err != nil {
		t.Fatal(err)
	}
	f.Close()

	entries, _ := store.Load("u1")
	if len(entries) != 1 {
		t.Fatalf("cache should still hold 1 entry, got %d", len(entries))
	}

	store.Invalidate("u1")
	entries, err = store.Load("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("after invalidation the external note must appear, got %d entries", len(entries))
	}
}
