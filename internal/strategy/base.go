package strategy

import (
	"context"
	"fmt"

	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/conversation"
	"github.com/computor-org/computor-agent-sub000/internal/intent"
	"github.com/computor-org/computor-agent-sub000/internal/llm"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
	"github.com/computor-org/computor-agent-sub000/internal/notes"
)

// baseStrategy implements the common prompt-build/complete/wrap cycle.
// Most intents need nothing beyond this.
type baseStrategy struct {
	client      llm.Client
	intent      intent.Intent
	personality string
	language    string
}

func (s *baseStrategy) Name() string {
	return s.intent.String()
}

// buildUserMessage returns the raw trigger text by default.
func (s *baseStrategy) buildUserMessage(convo *conversation.Context) string {
	text := convo.TriggerText()
	if text == "" {
		text = "Please review the submitted solution."
	}
	return text
}

func (s *baseStrategy) complete(ctx context.Context, system, user string, sc config.StrategyConfig) (*Response, error) {
	timer := logging.StartTimer(logging.CategoryStrategy, "strategy."+s.Name())
	defer timer.Stop()

	text, err := s.client.Complete(ctx, llm.Request{
		System:      system,
		Prompt:      user,
		MaxTokens:   sc.MaxResponseTokens,
		Temperature: sc.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("strategy %s completion failed: %w", s.Name(), err)
	}

	return &Response{
		MessageContent: text,
		StrategyName:   s.Name(),
		TokenCount:     estimateTokens(text),
	}, nil
}

func (s *baseStrategy) Execute(ctx context.Context, convo *conversation.Context, sc config.StrategyConfig) (*Response, error) {
	system := buildSystemPrompt(s.intent, convo, s.personality, s.language)
	return s.complete(ctx, system, s.buildUserMessage(convo), sc)
}

// helpDebugStrategy additionally feeds stored student notes into the user
// message, so recurring misconceptions inform the debugging hints.
type helpDebugStrategy struct {
	baseStrategy
	notes *notes.Store // nil when the notes store is disabled
}

func (s *helpDebugStrategy) Execute(ctx context.Context, convo *conversation.Context, sc config.StrategyConfig) (*Response, error) {
	system := buildSystemPrompt(s.intent, convo, s.personality, s.language)

	user := s.buildUserMessage(convo)
	if notesText := s.studentNotes(convo); notesText != "" {
		user += "\n\n## Tutor notes about this student\n\n" + notesText
	}

	return s.complete(ctx, system, user, sc)
}

func (s *helpDebugStrategy) studentNotes(convo *conversation.Context) string {
	if convo.StudentNotes != nil {
		return *convo.StudentNotes
	}
	if s.notes == nil {
		return ""
	}
	ids := make([]string, 0, len(convo.Students))
	for _, m := range convo.Students {
		ids = append(ids, m.UserID)
	}
	text, _ := s.notes.Lookup(ids...)
	return text
}
