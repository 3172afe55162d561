package strategy

import (
	"context"

	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/conversation"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// submissionReviewStrategy reviews a submitted solution and, when grading
// is enabled, extracts a grade from the completion.
type submissionReviewStrategy struct {
	baseStrategy
	grading config.GradingConfig
}

func (s *submissionReviewStrategy) Execute(ctx context.Context, convo *conversation.Context, sc config.StrategyConfig) (*Response, error) {
	system := buildSystemPrompt(s.intent, convo, s.personality, s.language)
	if s.grading.Enabled {
		system += "\n" + gradingInstructions
	}

	resp, err := s.complete(ctx, system, s.buildUserMessage(convo), sc)
	if err != nil {
		return nil, err
	}

	if s.grading.Enabled {
		cleaned, grade, status := extractGrading(resp.MessageContent)
		resp.MessageContent = cleaned
		resp.Grade = grade
		resp.GradeStatus = status
		if grade == nil {
			// The model skipped or mangled the block. The review text
			// still goes out; only the grade is lost.
			logging.Strategy("submission review produced no parseable grading block")
		} else {
			if resp.GradeStatus == nil {
				st := s.grading.DefaultStatus
				resp.GradeStatus = &st
			}
			resp.GradeComment = resp.MessageContent
			logging.Strategy("extracted grade %.2f (status %d)", *grade, *resp.GradeStatus)
		}
	}

	return resp, nil
}
