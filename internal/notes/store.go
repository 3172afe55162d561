// Package notes provides the on-disk student notes store: one append-only
// JSON-lines file per student id in a configured directory. The store
// keeps a small in-memory cache that a directory watcher invalidates when
// files change underneath the agent.
package notes

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// Entry is one stored note.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Note      string    `json:"note"`
}

// Store reads and appends per-student notes.
type Store struct {
	dir   string
	mu    sync.RWMutex
	cache map[string][]Entry // user id -> entries
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first append; a missing directory just means no notes exist yet.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string][]Entry),
	}
}

// Dir returns the notes directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) fileFor(userID string) string {
	// User ids are platform uuids; keep the filename flat regardless
	safe := strings.ReplaceAll(userID, string(filepath.Separator), "_")
	return filepath.Join(s.dir, safe+".jsonl")
}

// Load returns all notes for a user, reading through the cache.
func (s *Store) Load(userID string) ([]Entry, error) {
	s.mu.RLock()
	if entries, ok := s.cache[userID]; ok {
		s.mu.RUnlock()
		return entries, nil
	}
	s.mu.RUnlock()

	entries, err := s.readFile(s.fileFor(userID))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[userID] = entries
	s.mu.Unlock()
	return entries, nil
}

// Lookup returns the rendered notes of the first user id that has any.
// Missing notes are not an error.
func (s *Store) Lookup(userIDs ...string) (string, bool) {
	for _, id := range userIDs {
		entries, err := s.Load(id)
		if err != nil {
			logging.NotesDebug("notes lookup failed for %s: %v", id, err)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		var sb strings.Builder
		for _, e := range entries {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", e.Timestamp.Format("2006-01-02"), e.Note))
		}
		return sb.String(), true
	}
	return "", false
}

// Append adds a note to a user's log.
func (s *Store) Append(userID, note string) error {
	if note == "" {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}

	entry := Entry{Timestamp: time.Now(), Note: note}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	f, err := os.OpenFile(s.fileFor(userID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open notes file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append note: %w", err)
	}

	s.mu.Lock()
	s.cache[userID] = append(s.cache[userID], entry)
	s.mu.Unlock()

	logging.Notes("appended note for user %s", userID)
	return nil
}

// Invalidate drops the cached entries for one user, or all users when
// userID is empty.
func (s *Store) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == "" {
		s.cache = make(map[string][]Entry)
		return
	}
	delete(s.cache, userID)
}

func (s *Store) readFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			// A corrupt line loses one note, never the whole file
			logging.NotesDebug("skipping malformed note line in %s: %v", path, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}
