// Package store persists scheduler state in SQLite so a restarted agent
// does not re-answer messages or re-grade submissions it already handled.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// ConversationState is the persisted slice of a conversation's state.
type ConversationState struct {
	ConversationID string
	LastMessageID  string
	LastProcessed  time.Time
}

// StateStore is a SQLite-backed scheduler state store.
type StateStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewStateStore initializes the SQLite database at the given path.
func NewStateStore(path string) (*StateStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &StateStore{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("state store opened at %s", path)
	return s, nil
}

func (s *StateStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_state (
		conversation_id TEXT PRIMARY KEY,
		last_message_id TEXT NOT NULL DEFAULT '',
		last_processed  INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS processed_artifacts (
		conversation_id TEXT NOT NULL,
		artifact_id     TEXT NOT NULL,
		processed_at    INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, artifact_id)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate state store: %w", err)
	}
	return nil
}

// SaveConversationState upserts the state row for a conversation.
func (s *StateStore) SaveConversationState(state ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO conversation_state (conversation_id, last_message_id, last_processed)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			last_message_id = excluded.last_message_id,
			last_processed  = excluded.last_processed`,
		state.ConversationID, state.LastMessageID, state.LastProcessed.Unix())
	if err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

// LoadConversationStates returns all persisted conversation states.
func (s *StateStore) LoadConversationStates() ([]ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT conversation_id, last_message_id, last_processed FROM conversation_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation states: %w", err)
	}
	defer rows.Close()

	var states []ConversationState
	for rows.Next() {
		var st ConversationState
		var processed int64
		if err := rows.Scan(&st.ConversationID, &st.LastMessageID, &processed); err != nil {
			return nil, fmt.Errorf("failed to scan conversation state: %w", err)
		}
		if processed > 0 {
			st.LastProcessed = time.Unix(processed, 0)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// MarkArtifactProcessed records that an artifact has been handled.
func (s *StateStore) MarkArtifactProcessed(conversationID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO processed_artifacts (conversation_id, artifact_id, processed_at)
		VALUES (?, ?, ?)`,
		conversationID, artifactID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to mark artifact processed: %w", err)
	}
	return nil
}

// LoadProcessedArtifacts returns the set of handled artifact ids per conversation.
func (s *StateStore) LoadProcessedArtifacts() (map[string]map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT conversation_id, artifact_id FROM processed_artifacts`)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed artifacts: %w", err)
	}
	defer rows.Close()

	result := make(map[string]map[string]bool)
	for rows.Next() {
		var convID, artID string
		if err := rows.Scan(&convID, &artID); err != nil {
			return nil, fmt.Errorf("failed to scan processed artifact: %w", err)
		}
		if result[convID] == nil {
			result[convID] = make(map[string]bool)
		}
		result[convID][artID] = true
	}
	return result, rows.Err()
}

// Close closes the underlying database.
func (s *StateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
