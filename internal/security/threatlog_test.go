package security

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestThreatLog_AppendAndTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "threats.jsonl")
	tl, err := NewThreatLog(path)
	if err != nil {
		t.Fatalf("NewThreatLog: %v", err)
	}
	defer tl.Close()

	longEvidence := strings.Repeat("A", 2000)
	agreed := true
	result := &CheckResult{
		IsSafe:             false,
		WasConfirmed:       true,
		ConfirmationAgreed: &agreed,
		ConversationID:     "conv-1",
		UserID:             "user-1",
		MessageID:          "msg-1",
		Threats: []ThreatDetection{
			{
				Type:        ThreatPromptInjection,
				Level:       LevelHigh,
				Description: "injection",
				Evidence:    longEvidence,
				Source:      SourceMessage,
			},
		},
	}
	if err := tl.Append(result); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tl.Append(result); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var lines []threatLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry threatLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not valid JSON: %v", err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	entry := lines[0]
	if entry.ConversationID != "conv-1" || entry.HighestLevel != "high" || entry.ThreatCount != 1 {
		t.Fatalf("entry fields wrong: %+v", entry)
	}
	if got := len(entry.Threats[0].Evidence); got > maxEvidenceChars {
		t.Fatalf("evidence must be capped at %d chars, got %d", maxEvidenceChars, got)
	}
}

func TestThreatLog_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.jsonl")
	tl, err := NewThreatLog(path)
	if err != nil {
		t.Fatalf("NewThreatLog: %v", err)
	}
	defer tl.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	// Attack evidence is sensitive; the log must not be world-readable
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("threat log permissions = %o, want 0600", perm)
	}
}
