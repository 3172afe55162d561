// Package security implements the two-phase LLM threat screen that runs
// before any tutoring response is generated, plus filesystem access
// validation for LLM-requested paths.
package security

import (
	"strings"
	"time"
)

// ThreatLevel is the severity of a detection, ordered NONE < LOW <
// MEDIUM < HIGH < CRITICAL.
type ThreatLevel int

const (
	LevelNone ThreatLevel = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l ThreatLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseThreatLevel maps a model-emitted level name to a ThreatLevel.
// Unknown names map to MEDIUM so a garbled level is surfaced rather
// than silently dropped.
func ParseThreatLevel(s string) ThreatLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone
	case "low":
		return LevelLow
	case "medium":
		return LevelMedium
	case "high":
		return LevelHigh
	case "critical":
		return LevelCritical
	default:
		return LevelMedium
	}
}

// ThreatType is the closed detection vocabulary.
type ThreatType string

const (
	ThreatPromptInjection     ThreatType = "prompt_injection"
	ThreatCredentialExtract   ThreatType = "credential_extraction"
	ThreatSystemPromptExtract ThreatType = "system_prompt_extraction"
	ThreatRoleManipulation    ThreatType = "role_manipulation"
	ThreatMaliciousCode       ThreatType = "malicious_code"
	ThreatDataExfiltration    ThreatType = "data_exfiltration"
	ThreatObfuscatedPayload   ThreatType = "obfuscated_payload"
	ThreatHarassment          ThreatType = "harassment"
	ThreatAcademicDishonesty  ThreatType = "academic_dishonesty"
	ThreatOther               ThreatType = "other"
)

// knownThreatTypes guards the closed vocabulary.
var knownThreatTypes = map[ThreatType]bool{
	ThreatPromptInjection:     true,
	ThreatCredentialExtract:   true,
	ThreatSystemPromptExtract: true,
	ThreatRoleManipulation:    true,
	ThreatMaliciousCode:       true,
	ThreatDataExfiltration:    true,
	ThreatObfuscatedPayload:   true,
	ThreatHarassment:          true,
	ThreatAcademicDishonesty:  true,
	ThreatOther:               true,
}

// NormalizeThreatType maps a model-emitted type name into the closed
// vocabulary, defaulting to "other".
func NormalizeThreatType(s string) ThreatType {
	t := ThreatType(strings.ToLower(strings.TrimSpace(s)))
	if knownThreatTypes[t] {
		return t
	}
	return ThreatOther
}

// ContentSource identifies what was screened.
type ContentSource string

const (
	SourceMessage ContentSource = "message"
	SourceCode    ContentSource = "code"
)

// ThreatDetection is one finding from the detection phase.
type ThreatDetection struct {
	Type        ThreatType    `json:"type"`
	Level       ThreatLevel   `json:"level"`
	Description string        `json:"description"`
	Evidence    string        `json:"evidence"`
	Source      ContentSource `json:"source"`
	FilePath    string        `json:"file_path,omitempty"`
}

// CheckResult is the outcome of one security screening.
type CheckResult struct {
	IsSafe             bool
	Threats            []ThreatDetection
	WasConfirmed       bool  // Confirmation phase ran
	ConfirmationAgreed *bool // Confirmation verdict, nil when phase skipped
	Elapsed            time.Duration

	// Trace identifiers for the threat log
	ConversationID string
	UserID         string
	MessageID      string
}

// HighestThreatLevel returns the maximum level across all threats,
// or NONE for an empty list.
func (r *CheckResult) HighestThreatLevel() ThreatLevel {
	highest := LevelNone
	for _, t := range r.Threats {
		if t.Level > highest {
			highest = t.Level
		}
	}
	return highest
}

// ShouldBlock reports whether the highest threat level warrants blocking.
func (r *CheckResult) ShouldBlock() bool {
	level := r.HighestThreatLevel()
	return level == LevelHigh || level == LevelCritical
}
