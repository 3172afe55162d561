package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/computor-org/computor-agent-sub000/internal/conversation"
	"github.com/computor-org/computor-agent-sub000/internal/llm"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// Classification is the outcome of one intent classification.
type Classification struct {
	Intent     Intent
	Confidence float64 // 0..1
	Reasoning  string
	// SecondaryIntent preserves the originally detected intent when a
	// low-confidence result was downgraded to the default.
	SecondaryIntent *Intent
}

// Config tunes the classifier.
type Config struct {
	ConfidenceThreshold float64 // Below this, downgrade to DefaultIntent
	DefaultIntent       Intent
	MaxHistoryMessages  int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		DefaultIntent:       Other,
		MaxHistoryMessages:  3,
	}
}

// Classifier maps a conversation context to an intent via one LLM call.
type Classifier struct {
	client llm.Client
	cfg    Config
}

// NewClassifier creates a classifier.
func NewClassifier(client llm.Client, cfg Config) *Classifier {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.5
	}
	if cfg.DefaultIntent == "" {
		cfg.DefaultIntent = Other
	}
	if cfg.MaxHistoryMessages <= 0 {
		cfg.MaxHistoryMessages = 3
	}
	return &Classifier{client: client, cfg: cfg}
}

const classifySystemPrompt = `You classify messages from students in a programming course into one of
these intents:

- question_example: asks for an example or illustration
- question_howto: asks how to approach or implement something
- help_debug: has broken or failing code and wants debugging help
- help_review: wants feedback on code that works
- submission_review: asks for their submission to be reviewed or graded
- clarification: asks what the assignment text means
- other: anything else

Respond with JSON only:

{"intent": "<intent>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

// classifyEnvelope is the JSON shape the classification prompt asks for.
type classifyEnvelope struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classify returns the intent for a context.
//
// A submission trigger without a message short-circuits to
// SubmissionReview at full confidence: there is nothing to classify and
// no LLM call is made. All failure modes degrade to the default intent
// at confidence 0; classification never returns an error to the pipeline.
func (c *Classifier) Classify(ctx context.Context, convo *conversation.Context) Classification {
	timer := logging.StartTimer(logging.CategoryIntent, "Classifier.Classify")
	defer timer.Stop()

	if convo.Type == conversation.TriggerSubmission && convo.TrigMessage == nil {
		logging.IntentDebug("submission trigger, short-circuit to %s", SubmissionReview)
		return Classification{Intent: SubmissionReview, Confidence: 1.0}
	}

	response, err := c.client.Complete(ctx, llm.Request{
		System:      classifySystemPrompt,
		Prompt:      c.buildPrompt(convo),
		MaxTokens:   256,
		Temperature: 0.0,
	})
	if err != nil {
		logging.Get(logging.CategoryIntent).Warn("classification call failed: %v (using default)", err)
		return Classification{Intent: c.cfg.DefaultIntent, Confidence: 0}
	}

	parsed, err := parseClassification(response)
	if err != nil {
		logging.Get(logging.CategoryIntent).Warn("classification parse failed: %v (using default)", err)
		return Classification{Intent: c.cfg.DefaultIntent, Confidence: 0}
	}

	detected, ok := Parse(parsed.Intent)
	if !ok {
		logging.IntentDebug("unknown intent %q from model (using default)", parsed.Intent)
		return Classification{Intent: c.cfg.DefaultIntent, Confidence: 0, Reasoning: parsed.Reasoning}
	}

	confidence := clamp01(parsed.Confidence)

	// Low confidence downgrades to the default intent but keeps the
	// detected intent visible for observability.
	if confidence < c.cfg.ConfidenceThreshold {
		secondary := detected
		logging.Intent("low-confidence %s (%.2f < %.2f), downgraded to %s",
			detected, confidence, c.cfg.ConfidenceThreshold, c.cfg.DefaultIntent)
		return Classification{
			Intent:          c.cfg.DefaultIntent,
			Confidence:      confidence,
			Reasoning:       parsed.Reasoning,
			SecondaryIntent: &secondary,
		}
	}

	logging.Intent("classified %s (confidence %.2f)", detected, confidence)
	return Classification{Intent: detected, Confidence: confidence, Reasoning: parsed.Reasoning}
}

// buildPrompt renders the trigger message plus bounded history.
func (c *Classifier) buildPrompt(convo *conversation.Context) string {
	var sb strings.Builder

	history := convo.PreviousMessages
	if len(history) > c.cfg.MaxHistoryMessages {
		history = history[len(history)-c.cfg.MaxHistoryMessages:]
	}
	if len(history) > 0 {
		sb.WriteString("## Recent conversation\n\n")
		for _, m := range history {
			sb.WriteString(fmt.Sprintf("- %s\n", m.Content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Message to classify\n\n")
	sb.WriteString(convo.TriggerText())
	return sb.String()
}

// parseClassification extracts the classification object from a free-text
// reply. The object may be embedded anywhere: the slice from the first
// "{" to the last "}" is parsed.
func parseClassification(response string) (*classifyEnvelope, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in classification response")
	}

	var envelope classifyEnvelope
	if err := json.Unmarshal([]byte(response[start:end+1]), &envelope); err != nil {
		return nil, fmt.Errorf("classification JSON parse failed: %w", err)
	}
	if envelope.Intent == "" {
		return nil, fmt.Errorf("classification response missing intent field")
	}
	return &envelope, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
