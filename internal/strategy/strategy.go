// Package strategy turns a classified conversation context into a tutor
// response. One strategy exists per intent; each builds an intent-specific
// prompt, issues one LLM completion, and wraps the text in a Response.
// The submission-review strategy additionally extracts a grade.
package strategy

import (
	"context"

	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/conversation"
)

// Response is the outcome of one strategy execution.
type Response struct {
	MessageContent string
	MessageTitle   string
	Grade          *float64 // 0..1, only set by grading strategies
	GradeStatus    *int     // 0..3
	GradeComment   string
	StrategyName   string
	TokenCount     int // Rough completion size estimate
}

// Strategy generates a response for one intent.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, convo *conversation.Context, sc config.StrategyConfig) (*Response, error)
}

// estimateTokens approximates the token count of a completion. The
// platform only uses this for reporting, so chars/4 is close enough.
func estimateTokens(s string) int {
	return len(s) / 4
}
