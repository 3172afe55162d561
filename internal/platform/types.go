// Package platform provides the course-platform API client used by the
// tutor agent: conversations, members, course contents and grading.
package platform

import "time"

// Message is one message in a submission-group conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AuthorID       string    `json:"author_id"`
	Title          string    `json:"title,omitempty"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// CourseMember links a user to a course with a role.
type CourseMember struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
	Role     string `json:"role"` // student, tutor, lecturer, maintainer, owner
	FullName string `json:"full_name,omitempty"`
}

// Staff course roles. A conversation whose last message comes from one of
// these roles is considered answered.
const (
	RoleStudent    = "student"
	RoleTutor      = "tutor"
	RoleLecturer   = "lecturer"
	RoleMaintainer = "maintainer"
	RoleOwner      = "owner"
)

// IsStaffRole reports whether a course role belongs to teaching staff.
func IsStaffRole(role string) bool {
	switch role {
	case RoleTutor, RoleLecturer, RoleMaintainer, RoleOwner:
		return true
	}
	return false
}

// CourseContent is the assignment metadata linked to a conversation.
type CourseContent struct {
	ID           string `json:"id"`
	CourseID     string `json:"course_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Kind         string `json:"kind,omitempty"`
	ReferenceURL string `json:"reference_url,omitempty"` // Reference solution repository
	MaxGrade     *float64 `json:"max_grade,omitempty"`
}

// MemberComment is a free-text tutor/lecturer note attached to a course member.
type MemberComment struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"member_id"`
	Author    string    `json:"author,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmissionGroup is the unit a trigger, context and response are scoped
// to: one conversation plus the student members behind it.
type SubmissionGroup struct {
	ID            string   `json:"id"` // Doubles as the conversation id
	CourseID      string   `json:"course_id"`
	ContentID     string   `json:"content_id"`
	MemberIDs     []string `json:"member_ids"`
	RepositoryURL string   `json:"repository_url,omitempty"`
}

// Submission is one submitted artifact in a submission group.
type Submission struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Submit    bool      `json:"submit"` // True only for official submission events
	Version   string    `json:"version,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GradingUpdate carries a grading result back to the platform.
type GradingUpdate struct {
	Status  int      `json:"status"`            // 0..3 grading status
	Grade   *float64 `json:"grade,omitempty"`   // 0..1, nil when not graded
	Comment string   `json:"comment,omitempty"` // Feedback shown to graders
}

// GroupFilter narrows the submission-group listing.
type GroupFilter struct {
	CourseIDs  []string
	ContentIDs []string
}
