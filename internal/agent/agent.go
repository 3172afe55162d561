// Package agent orchestrates one tutor interaction end to end:
// build context, screen it, classify the intent, execute the matching
// strategy, deliver the response and (for submissions) the grade.
//
// The context is destroyed in a defer, unconditionally: student code,
// history and notes never outlive the interaction, whether it succeeded,
// failed or was blocked.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/conversation"
	"github.com/computor-org/computor-agent-sub000/internal/intent"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
	"github.com/computor-org/computor-agent-sub000/internal/platform"
	"github.com/computor-org/computor-agent-sub000/internal/security"
	"github.com/computor-org/computor-agent-sub000/internal/strategy"
)

// ProcessingResult reports the outcome of one interaction. It never
// carries context payloads, only identifiers and metrics; the context
// itself is gone by the time the result is returned.
type ProcessingResult struct {
	ConversationID string
	ContextID      string
	Trigger        conversation.TriggerType
	Intent         intent.Intent
	StrategyName   string

	Success bool
	Blocked bool // Security gate stopped the interaction
	Skipped bool // Strategy disabled in configuration
	Error   string

	ResponseMessageID string
	Grade             *float64
	TokenCount        int
	Elapsed           time.Duration
}

// TutorAgent runs the processing pipeline for one trigger.
type TutorAgent struct {
	api        platform.Client
	builder    *ContextBuilder
	gate       *security.Gate
	classifier *intent.Classifier
	registry   *strategy.Registry
	cfg        *config.Config
}

// New creates a tutor agent.
func New(api platform.Client, builder *ContextBuilder, gate *security.Gate, classifier *intent.Classifier, registry *strategy.Registry, cfg *config.Config) *TutorAgent {
	return &TutorAgent{
		api:        api,
		builder:    builder,
		gate:       gate,
		classifier: classifier,
		registry:   registry,
		cfg:        cfg,
	}
}

// ProcessMessage handles a message trigger.
func (a *TutorAgent) ProcessMessage(ctx context.Context, group platform.SubmissionGroup, msg *platform.Message) *ProcessingResult {
	convo := a.builder.BuildForMessage(ctx, group, msg)
	return a.process(ctx, convo)
}

// ProcessSubmission handles a submission trigger.
func (a *TutorAgent) ProcessSubmission(ctx context.Context, group platform.SubmissionGroup, artifact *platform.Submission) *ProcessingResult {
	convo := a.builder.BuildForSubmission(ctx, group, artifact)
	return a.process(ctx, convo)
}

func (a *TutorAgent) process(ctx context.Context, convo *conversation.Context) (result *ProcessingResult) {
	start := time.Now()
	result = &ProcessingResult{
		ConversationID: convo.ConversationID,
		ContextID:      convo.ID,
		Trigger:        convo.Type,
	}

	// The context must not survive this call, and a panic anywhere in
	// the pipeline must degrade to a failed result, not kill the
	// scheduler.
	defer func() {
		convo.Destroy()
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("panic during processing: %v", r)
			logging.Get(logging.CategoryAgent).Error("conversation %s: %s", result.ConversationID, result.Error)
		}
		result.Elapsed = time.Since(start)
		logging.Agent("conversation %s: success=%v blocked=%v intent=%s elapsed=%v",
			result.ConversationID, result.Success, result.Blocked, result.Intent, result.Elapsed)
	}()

	timer := logging.StartTimer(logging.CategoryAgent, "TutorAgent.process")
	defer timer.Stop()

	if check := a.gate.CheckContext(ctx, convo); !check.IsSafe {
		logging.Security("conversation %s: unsafe content, highest=%s",
			convo.ConversationID, check.HighestThreatLevel())
		if a.cfg.Security.BlockOnThreat {
			result.Blocked = true
			result.Success = true
			return result
		}
		// Blocking disabled: the threat is logged and processing continues.
	}

	classification := a.classify(ctx, convo)
	result.Intent = classification.Intent

	sc := a.cfg.StrategyFor(classification.Intent.String())
	if !sc.Enabled {
		logging.Agent("conversation %s: strategy %s disabled, skipping",
			convo.ConversationID, classification.Intent)
		result.Skipped = true
		result.Success = true
		return result
	}

	strat := a.registry.Get(classification.Intent)
	result.StrategyName = strat.Name()

	response, err := strat.Execute(ctx, convo, sc)
	if err != nil {
		result.Error = fmt.Sprintf("strategy execution failed: %v", err)
		return result
	}
	result.TokenCount = response.TokenCount
	result.Grade = response.Grade

	created, err := a.api.CreateMessage(ctx, convo.ConversationID, response.MessageContent, response.MessageTitle)
	if err != nil {
		result.Error = fmt.Sprintf("failed to deliver response: %v", err)
		return result
	}
	result.ResponseMessageID = created.ID

	a.submitGrade(ctx, convo, response, result)

	result.Success = true
	return result
}

// classify resolves the intent. A submission without a message is a
// review by definition; everything else goes through the classifier.
func (a *TutorAgent) classify(ctx context.Context, convo *conversation.Context) intent.Classification {
	if convo.Type == conversation.TriggerSubmission {
		return intent.Classification{Intent: intent.SubmissionReview, Confidence: 1.0}
	}
	return a.classifier.Classify(ctx, convo)
}

// submitGrade pushes an extracted grade back to the platform when grading
// and auto-submit are both enabled. A grading failure after the response
// message was already delivered is logged but does not fail the result,
// since retrying the whole interaction would double-post the message.
func (a *TutorAgent) submitGrade(ctx context.Context, convo *conversation.Context, response *strategy.Response, result *ProcessingResult) {
	if !a.cfg.Grading.Enabled || !a.cfg.Grading.AutoSubmitGrade || response.Grade == nil {
		return
	}

	status := a.cfg.Grading.DefaultStatus
	if response.GradeStatus != nil {
		status = *response.GradeStatus
	}

	update := platform.GradingUpdate{
		Status:  status,
		Grade:   response.Grade,
		Comment: response.GradeComment,
	}
	if err := a.api.UpdateSubmissionGrading(ctx, convo.ConversationID, update); err != nil {
		logging.Get(logging.CategoryAgent).Error("grading submit failed for %s: %v",
			convo.ConversationID, err)
		return
	}
	logging.Agent("conversation %s: grade %.2f submitted (status %d)",
		convo.ConversationID, *response.Grade, status)
}
