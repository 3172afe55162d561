package agent

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/computor-org/computor-agent-sub000/internal/config"
	"github.com/computor-org/computor-agent-sub000/internal/conversation"
	"github.com/computor-org/computor-agent-sub000/internal/logging"
	"github.com/computor-org/computor-agent-sub000/internal/notes"
	"github.com/computor-org/computor-agent-sub000/internal/platform"
	"github.com/computor-org/computor-agent-sub000/internal/repo"
)

// ContextBuilder assembles the per-interaction conversation context from
// platform data and local checkouts.
//
// Construction is partial-failure tolerant: every enrichment step that
// fails logs and leaves its field empty, so a flaky member-comments
// endpoint never prevents a response. Only the trigger payload itself is
// mandatory.
type ContextBuilder struct {
	api   platform.Client
	cfg   config.ContextConfig
	notes *notes.Store // nil when the notes store is disabled

	// ReposDir holds one checkout per conversation id; ReferenceDir one
	// reference solution per content id. Empty dirs disable code loading.
	reposDir     string
	referenceDir string
}

// BuilderOptions carries the context builder dependencies.
type BuilderOptions struct {
	API          platform.Client
	Config       config.ContextConfig
	Notes        *notes.Store
	ReposDir     string
	ReferenceDir string
}

// NewContextBuilder creates a context builder.
func NewContextBuilder(o BuilderOptions) *ContextBuilder {
	return &ContextBuilder{
		api:          o.API,
		cfg:          o.Config,
		notes:        o.Notes,
		reposDir:     o.ReposDir,
		referenceDir: o.ReferenceDir,
	}
}

// BuildForMessage builds the context for a message trigger.
func (b *ContextBuilder) BuildForMessage(ctx context.Context, group platform.SubmissionGroup, msg *platform.Message) *conversation.Context {
	convo := conversation.NewContext(group.ID, conversation.TriggerMessage)
	convo.TrigMessage = msg
	b.populate(ctx, convo, group)
	return convo
}

// BuildForSubmission builds the context for a submission trigger.
func (b *ContextBuilder) BuildForSubmission(ctx context.Context, group platform.SubmissionGroup, artifact *platform.Submission) *conversation.Context {
	convo := conversation.NewContext(group.ID, conversation.TriggerSubmission)
	convo.TrigSubmission = artifact
	b.populate(ctx, convo, group)
	return convo
}

func (b *ContextBuilder) populate(ctx context.Context, convo *conversation.Context, group platform.SubmissionGroup) {
	timer := logging.StartTimer(logging.CategoryContext, "ContextBuilder.populate")
	defer timer.Stop()

	b.loadStudents(ctx, convo, group)
	b.loadHistory(ctx, convo)
	b.loadAssignment(ctx, convo, group)
	b.loadMemberComments(ctx, convo)
	b.loadNotes(convo)
	b.loadStudentCode(convo, group)
	b.loadReferenceCode(convo)

	logging.ContextDebug("context %s: students=%d history=%d comments=%d code=%v reference=%v",
		convo.ID, len(convo.Students), len(convo.PreviousMessages),
		len(convo.MemberComments), convo.StudentCode != nil, convo.ReferenceCode != nil)
}

func (b *ContextBuilder) loadStudents(ctx context.Context, convo *conversation.Context, group platform.SubmissionGroup) {
	members, err := b.api.GetCourseMembers(ctx, group.ID)
	if err != nil {
		logging.Get(logging.CategoryContext).Warn("member fetch failed for %s: %v", group.ID, err)
		return
	}
	for _, m := range members {
		if m.Role == platform.RoleStudent {
			convo.Students = append(convo.Students, m)
		}
	}
}

// loadHistory keeps the last N messages before the trigger, ascending.
func (b *ContextBuilder) loadHistory(ctx context.Context, convo *conversation.Context) {
	if b.cfg.IncludePreviousMessages <= 0 {
		return
	}

	messages, err := b.api.GetMessages(ctx, convo.ConversationID)
	if err != nil {
		logging.Get(logging.CategoryContext).Warn("history fetch failed for %s: %v", convo.ConversationID, err)
		return
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	history := make([]platform.Message, 0, len(messages))
	for _, m := range messages {
		if convo.TrigMessage != nil && m.ID == convo.TrigMessage.ID {
			continue
		}
		history = append(history, m)
	}
	if len(history) > b.cfg.IncludePreviousMessages {
		history = history[len(history)-b.cfg.IncludePreviousMessages:]
	}
	convo.PreviousMessages = history
}

func (b *ContextBuilder) loadAssignment(ctx context.Context, convo *conversation.Context, group platform.SubmissionGroup) {
	if group.ContentID == "" {
		return
	}
	content, err := b.api.GetCourseContent(ctx, group.ContentID)
	if err != nil {
		logging.Get(logging.CategoryContext).Warn("assignment fetch failed for %s: %v", group.ContentID, err)
		return
	}
	convo.Assignment = content
}

func (b *ContextBuilder) loadMemberComments(ctx context.Context, convo *conversation.Context) {
	if !b.cfg.IncludeCourseMemberComments {
		return
	}
	for _, student := range convo.Students {
		comments, err := b.api.GetCourseMemberComments(ctx, student.ID)
		if err != nil {
			logging.Get(logging.CategoryContext).Warn("comment fetch failed for member %s: %v", student.ID, err)
			continue
		}
		convo.MemberComments = append(convo.MemberComments, comments...)
	}
}

func (b *ContextBuilder) loadNotes(convo *conversation.Context) {
	if b.notes == nil || len(convo.Students) == 0 {
		return
	}
	ids := make([]string, 0, len(convo.Students))
	for _, m := range convo.Students {
		ids = append(ids, m.UserID)
	}
	if text, ok := b.notes.Lookup(ids...); ok {
		convo.StudentNotes = &text
	}
}

func (b *ContextBuilder) loadStudentCode(convo *conversation.Context, group platform.SubmissionGroup) {
	if b.reposDir == "" {
		return
	}
	path := filepath.Join(b.reposDir, group.ID)
	bundle := b.readBundle(path)
	if bundle != nil {
		convo.StudentCode = bundle
	}
}

func (b *ContextBuilder) loadReferenceCode(convo *conversation.Context) {
	if !b.cfg.IncludeReferenceSolution || b.referenceDir == "" || convo.Assignment == nil {
		return
	}
	path := filepath.Join(b.referenceDir, convo.Assignment.ID)
	bundle := b.readBundle(path)
	if bundle != nil {
		convo.ReferenceCode = bundle
	}
}

// readBundle loads a bounded code bundle, or nil when the checkout does
// not exist or cannot be read. A missing checkout is normal: not every
// conversation has code.
func (b *ContextBuilder) readBundle(path string) *repo.Bundle {
	if _, err := os.Stat(path); err != nil {
		logging.ContextDebug("no checkout at %s", path)
		return nil
	}
	bundle, err := repo.ReadBundle(path, repo.Limits{
		MaxFiles:      b.cfg.MaxCodeFiles,
		MaxTotalLines: b.cfg.MaxCodeLines,
	})
	if err != nil {
		logging.Get(logging.CategoryContext).Warn("code bundle failed for %s: %v", path, err)
		return nil
	}
	return bundle
}
