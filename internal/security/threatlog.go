package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxEvidenceChars bounds how much raw attack content the threat log
// retains per threat.
const maxEvidenceChars = 500

// threatLogEntry is one JSON line in the threat log.
type threatLogEntry struct {
	Timestamp      time.Time         `json:"timestamp"`
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	MessageID      string            `json:"message_id"`
	HighestLevel   string            `json:"highest_level"`
	ThreatCount    int               `json:"threat_count"`
	WasConfirmed   bool              `json:"was_confirmed"`
	Threats        []threatLogThreat `json:"threats"`
}

type threatLogThreat struct {
	Type        string `json:"type"`
	Level       string `json:"level"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Evidence    string `json:"evidence"`
}

// ThreatLog is an append-only JSON-lines file of blocked interactions.
type ThreatLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewThreatLog opens (or creates) the threat log at path.
func NewThreatLog(path string) (*ThreatLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create threat log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open threat log: %w", err)
	}
	return &ThreatLog{file: f}, nil
}

// Append writes one result as a JSON line.
func (t *ThreatLog) Append(result *CheckResult) error {
	entry := threatLogEntry{
		Timestamp:      time.Now().UTC(),
		ConversationID: result.ConversationID,
		UserID:         result.UserID,
		MessageID:      result.MessageID,
		HighestLevel:   result.HighestThreatLevel().String(),
		ThreatCount:    len(result.Threats),
		WasConfirmed:   result.WasConfirmed,
	}
	for _, threat := range result.Threats {
		entry.Threats = append(entry.Threats, threatLogThreat{
			Type:        string(threat.Type),
			Level:       threat.Level.String(),
			Description: threat.Description,
			Source:      string(threat.Source),
			Evidence:    truncateEvidence(threat.Evidence, maxEvidenceChars),
		})
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal threat log entry: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write threat log entry: %w", err)
	}
	return nil
}

// Close closes the log file.
func (t *ThreatLog) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
