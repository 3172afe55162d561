// Package trigger decides whether a conversation needs a tutor response.
//
// The message rule: sort the conversation by
// creation time and look only at the last message. If its author holds a
// staff role the thread is considered answered; otherwise the last word
// belongs to a student and the tutor should respond. Staff replies buried
// earlier in a multi-party thread are not detected; the last message
// alone determines reply ownership.
package trigger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/computor-org/computor-agent-sub000/internal/logging"
	"github.com/computor-org/computor-agent-sub000/internal/platform"
)

// CheckResult is the immutable outcome of one trigger evaluation.
type CheckResult struct {
	ShouldRespond bool
	Reason        string
	Message       *platform.Message    // Set for positive message triggers
	Submission    *platform.Submission // Set for positive submission triggers
}

// Checker evaluates message and submission triggers.
type Checker struct {
	api platform.Client

	mu        sync.RWMutex
	roleCache map[string]string // "userID:courseID" -> role
}

// NewChecker creates a trigger checker.
func NewChecker(api platform.Client) *Checker {
	return &Checker{
		api:       api,
		roleCache: make(map[string]string),
	}
}

// CheckMessageTrigger fetches the conversation and decides whether the
// tutor should respond to its last message.
//
// Fail-closed: if the author's role cannot be resolved the result is
// negative with an explicit reason. The agent never responds on a guess.
func (c *Checker) CheckMessageTrigger(ctx context.Context, conversationID, courseID string) (CheckResult, error) {
	messages, err := c.api.GetMessages(ctx, conversationID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("failed to fetch messages: %w", err)
	}

	if len(messages) == 0 {
		return CheckResult{Reason: "no messages in conversation"}, nil
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	last := messages[len(messages)-1]

	role, err := c.resolveRole(ctx, conversationID, last.AuthorID, courseID)
	if err != nil {
		logging.Get(logging.CategoryTrigger).Warn("role lookup failed for %s in %s: %v",
			last.AuthorID, courseID, err)
		return CheckResult{
			Reason: fmt.Sprintf("role lookup failed for author %s: %v", last.AuthorID, err),
		}, nil
	}

	if platform.IsStaffRole(role) {
		logging.TriggerDebug("conversation %s: last message by %s (%s), already answered",
			conversationID, last.AuthorID, role)
		return CheckResult{
			Reason: fmt.Sprintf("last message authored by staff (%s)", role),
		}, nil
	}

	// Last speaker is a student; by construction no staff reply follows.
	logging.Trigger("conversation %s: student message %s awaiting response", conversationID, last.ID)
	return CheckResult{
		ShouldRespond: true,
		Reason:        "last message authored by student",
		Message:       &last,
	}, nil
}

// CheckSubmissionTrigger is a pure predicate: every artifact with the
// submit flag set is an official submission event and gets a review. No
// role lookup is needed: submissions are not replies, so there is no
// answered/unanswered race to resolve.
func (c *Checker) CheckSubmissionTrigger(conversationID string, artifact platform.Submission) CheckResult {
	if !artifact.Submit {
		return CheckResult{
			Reason: fmt.Sprintf("artifact %s is not a submission event", artifact.ID),
		}
	}
	return CheckResult{
		ShouldRespond: true,
		Reason:        "submitted artifact awaiting review",
		Submission:    &artifact,
	}
}

// resolveRole returns the course role of a user, cached per user:course.
func (c *Checker) resolveRole(ctx context.Context, conversationID, userID, courseID string) (string, error) {
	key := userID + ":" + courseID

	c.mu.RLock()
	if role, ok := c.roleCache[key]; ok {
		c.mu.RUnlock()
		return role, nil
	}
	c.mu.RUnlock()

	members, err := c.api.GetCourseMembers(ctx, conversationID)
	if err != nil {
		return "", err
	}

	for _, m := range members {
		if m.UserID == userID {
			c.mu.Lock()
			c.roleCache[m.UserID+":"+m.CourseID] = m.Role
			c.mu.Unlock()
			return m.Role, nil
		}
	}

	return "", fmt.Errorf("user %s is not a member of the conversation", userID)
}

// InvalidateRoleCache drops all cached roles (e.g. after enrollment changes).
func (c *Checker) InvalidateRoleCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roleCache = make(map[string]string)
}
