// Package conversation defines the per-interaction data aggregate the
// pipeline operates on. A ConversationContext is built fresh for every
// trigger, mutated only during construction, and destroyed unconditionally
// when processing ends, including on error. Destruction is a
// confidentiality control: student code, history and notes must not
// outlive the interaction.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/computor-org/computor-agent-sub000/internal/platform"
	"github.com/computor-org/computor-agent-sub000/internal/repo"
)

// TriggerType identifies what caused an interaction.
type TriggerType string

const (
	TriggerMessage    TriggerType = "message"
	TriggerSubmission TriggerType = "submission"
)

// EnrichedContext carries optional pre-rendered context sections.
// Each field renders to an empty string when absent, so prompt templates
// can always include the placeholder.
type EnrichedContext struct {
	TestResults       string
	SubmissionHistory string
	ReferenceDiff     string
	Progress          string
}

// Context is the per-interaction aggregate.
// Invariant: exactly one of TrigMessage / TrigSubmission is set.
type Context struct {
	ID             string
	ConversationID string
	Type           TriggerType
	CreatedAt      time.Time

	// Trigger payload (exactly one set)
	TrigMessage    *platform.Message
	TrigSubmission *platform.Submission

	// Student identities; more than one for group submissions
	Students []platform.CourseMember

	// Assignment metadata
	Assignment *platform.CourseContent

	// Bounded history, ascending by creation time
	PreviousMessages []platform.Message

	// Free-text tutor/lecturer comments about the members
	MemberComments []platform.MemberComment

	// Optional on-disk student notes
	StudentNotes *string

	// Optional code bundles
	StudentCode   *repo.Bundle
	ReferenceCode *repo.Bundle

	// Optional enriched sections
	Enriched *EnrichedContext

	destroyed bool
}

// NewContext creates an empty context for a conversation.
func NewContext(conversationID string, trigger TriggerType) *Context {
	return &Context{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Type:           trigger,
		CreatedAt:      time.Now(),
	}
}

// TriggerText returns the text of the triggering message, if any.
func (c *Context) TriggerText() string {
	if c.TrigMessage != nil {
		return c.TrigMessage.Content
	}
	return ""
}

// HasCode reports whether a student code bundle with content is present.
func (c *Context) HasCode() bool {
	return c.StudentCode != nil && len(c.StudentCode.Files) > 0
}

// Destroyed reports whether Destroy has run.
func (c *Context) Destroyed() bool {
	return c.destroyed
}

// Destroy clears all mutable collections and nulls sensitive payloads.
// Identifiers survive so the processing report stays traceable. Safe to
// call more than once.
func (c *Context) Destroy() {
	if c == nil || c.destroyed {
		return
	}
	c.PreviousMessages = nil
	c.MemberComments = nil
	c.Students = nil
	c.StudentNotes = nil
	c.Enriched = nil
	if c.StudentCode != nil {
		c.StudentCode.Files = map[string]string{}
		c.StudentCode = nil
	}
	if c.ReferenceCode != nil {
		c.ReferenceCode.Files = map[string]string{}
		c.ReferenceCode = nil
	}
	c.TrigMessage = nil
	c.TrigSubmission = nil
	c.Assignment = nil
	c.destroyed = true
}
