package security

import (
	"encoding/json"
	"fmt"
	"strings"
)

// detectionEnvelope is the JSON shape the detection prompt asks for.
type detectionEnvelope struct {
	Threats []struct {
		Type        string `json:"type"`
		Level       string `json:"level"`
		Description string `json:"description"`
		Evidence    string `json:"evidence"`
	} `json:"threats"`
}

// confirmationEnvelope is the JSON shape the confirmation prompt asks for.
type confirmationEnvelope struct {
	Confirmed bool   `json:"confirmed"`
	Reasoning string `json:"reasoning"`
}

// parseDetections extracts threat detections from a free-text model reply.
// The reply may wrap the JSON in prose or markdown fences; only the first
// balanced object is considered. An empty threats list is a valid result.
func parseDetections(response string, source ContentSource, filePath string) ([]ThreatDetection, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object in detection response")
	}

	var envelope detectionEnvelope
	if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
		return nil, fmt.Errorf("detection JSON parse failed: %w", err)
	}

	threats := make([]ThreatDetection, 0, len(envelope.Threats))
	for _, t := range envelope.Threats {
		level := ParseThreatLevel(t.Level)
		if level == LevelNone {
			// A "none" finding is the model saying nothing is wrong
			continue
		}
		threats = append(threats, ThreatDetection{
			Type:        NormalizeThreatType(t.Type),
			Level:       level,
			Description: t.Description,
			Evidence:    t.Evidence,
			Source:      source,
			FilePath:    filePath,
		})
	}
	return threats, nil
}

// parseConfirmation extracts the confirmation verdict from a model reply.
func parseConfirmation(response string) (bool, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return false, fmt.Errorf("no JSON object in confirmation response")
	}

	var envelope confirmationEnvelope
	if err := json.Unmarshal([]byte(jsonStr), &envelope); err != nil {
		return false, fmt.Errorf("confirmation JSON parse failed: %w", err)
	}
	return envelope.Confirmed, nil
}

// extractJSON finds the first balanced JSON object in a response
// (handles markdown wrappers and surrounding prose).
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
