package security

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"markdown fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding prose", `Sure! Here you go: {"a": 1} Hope that helps.`, `{"a": 1}`},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"unbalanced", `{"a": 1`, ""},
		{"no object", "nothing here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.response); got != tt.want {
				t.Fatalf("extractJSON(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}

func TestParseDetections(t *testing.T) {
	response := `Analysis complete.
{"threats": [
  {"type": "prompt_injection", "level": "critical", "description": "d1", "evidence": "e1"},
  {"type": "made_up_category", "level": "low", "description": "d2", "evidence": "e2"},
  {"type": "other", "level": "none", "description": "all clear", "evidence": ""}
]}`

	threats, err := parseDetections(response, SourceMessage, "")
	if err != nil {
		t.Fatalf("parseDetections: %v", err)
	}
	// The "none"-level finding is dropped
	if len(threats) != 2 {
		t.Fatalf("expected 2 threats, got %d", len(threats))
	}
	if threats[0].Type != ThreatPromptInjection || threats[0].Level != LevelCritical {
		t.Fatalf("threat 0 mismapped: %+v", threats[0])
	}
	// Unknown type normalizes into the closed vocabulary
	if threats[1].Type != ThreatOther {
		t.Fatalf("unknown type must normalize to other, got %s", threats[1].Type)
	}
	if threats[0].Source != SourceMessage {
		t.Fatalf("source must be carried through, got %s", threats[0].Source)
	}
}

func TestParseDetections_EmptyListIsValid(t *testing.T) {
	threats, err := parseDetections(`{"threats": []}`, SourceCode, "main.py")
	if err != nil {
		t.Fatalf("empty threat list must parse: %v", err)
	}
	if len(threats) != 0 {
		t.Fatalf("expected no threats, got %d", len(threats))
	}
}

func TestParseDetections_Malformed(t *testing.T) {
	for _, response := range []string{"", "no json at all", `{"threats": "oops"}`} {
		if _, err := parseDetections(response, SourceMessage, ""); err == nil {
			t.Errorf("expected parse error for %q", response)
		}
	}
}

func TestParseConfirmation(t *testing.T) {
	confirmed, err := parseConfirmation(`The analysis holds. {"confirmed": true, "reasoning": "real attempt"}`)
	if err != nil || !confirmed {
		t.Fatalf("confirmed=true expected, got %v, err=%v", confirmed, err)
	}

	confirmed, err = parseConfirmation(`{"confirmed": false, "reasoning": "false positive"}`)
	if err != nil || confirmed {
		t.Fatalf("confirmed=false expected, got %v, err=%v", confirmed, err)
	}

	if _, err := parseConfirmation("definitely a threat"); err == nil {
		t.Fatal("prose answer must be a parse error")
	}
}

func TestParseThreatLevel(t *testing.T) {
	tests := []struct {
		in   string
		want ThreatLevel
	}{
		{"none", LevelNone},
		{"LOW", LevelLow},
		{" medium ", LevelMedium},
		{"high", LevelHigh},
		{"critical", LevelCritical},
		{"severe", LevelMedium}, // Unknown surfaces as medium
		{"", LevelMedium},
	}
	for _, tt := range tests {
		if got := ParseThreatLevel(tt.in); got != tt.want {
			t.Errorf("ParseThreatLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
