package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/computor-org/computor-agent-sub000/internal/logging"
)

// Client defines the platform operations the tutor agent consumes.
// Any conforming implementation (HTTP backend, fake, fixture) can be
// substituted for deterministic tests.
type Client interface {
	GetMessages(ctx context.Context, conversationID string) ([]Message, error)
	GetCourseMembers(ctx context.Context, conversationID string) ([]CourseMember, error)
	GetCourseContent(ctx context.Context, contentID string) (*CourseContent, error)
	GetCourseMemberComments(ctx context.Context, memberID string) ([]MemberComment, error)
	CreateMessage(ctx context.Context, conversationID, content, title string) (*Message, error)
	UpdateSubmissionGrading(ctx context.Context, conversationID string, update GradingUpdate) error
	ListSubmissionGroups(ctx context.Context, filter GroupFilter) ([]SubmissionGroup, error)
	ListSubmissions(ctx context.Context, groupID string) ([]Submission, error)
}

// HTTPClient implements Client against the platform REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// HTTPConfig holds configuration for the HTTP client.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewHTTPClient creates a platform client.
func NewHTTPClient(config HTTPConfig) *HTTPClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		token:   config.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// doJSON performs one request and decodes the JSON response into out.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	logging.PlatformDebug("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform API %s %s failed with status %d: %s",
			method, path, resp.StatusCode, truncate(string(data), 300))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// GetMessages returns all messages of a conversation.
func (c *HTTPClient) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var messages []Message
	q := url.Values{"conversation_id": {conversationID}}
	if err := c.doJSON(ctx, http.MethodGet, "/messages", q, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetCourseMembers returns the course members of a conversation.
func (c *HTTPClient) GetCourseMembers(ctx context.Context, conversationID string) ([]CourseMember, error) {
	var members []CourseMember
	path := fmt.Sprintf("/submission-groups/%s/members", url.PathEscape(conversationID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// GetCourseContent returns assignment metadata for a content id.
func (c *HTTPClient) GetCourseContent(ctx context.Context, contentID string) (*CourseContent, error) {
	var content CourseContent
	path := fmt.Sprintf("/course-contents/%s", url.PathEscape(contentID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// GetCourseMemberComments returns free-text staff comments for a member.
func (c *HTTPClient) GetCourseMemberComments(ctx context.Context, memberID string) ([]MemberComment, error) {
	var comments []MemberComment
	path := fmt.Sprintf("/course-members/%s/comments", url.PathEscape(memberID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateMessage posts a tutor message into a conversation.
func (c *HTTPClient) CreateMessage(ctx context.Context, conversationID, content, title string) (*Message, error) {
	payload := map[string]string{
		"conversation_id": conversationID,
		"content":         content,
	}
	if title != "" {
		payload["title"] = title
	}
	var created Message
	if err := c.doJSON(ctx, http.MethodPost, "/messages", nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSubmissionGrading submits a grading result for a conversation.
func (c *HTTPClient) UpdateSubmissionGrading(ctx context.Context, conversationID string, update GradingUpdate) error {
	path := fmt.Sprintf("/submission-groups/%s/grading", url.PathEscape(conversationID))
	return c.doJSON(ctx, http.MethodPatch, path, nil, update, nil)
}

// ListSubmissionGroups lists tracked submission groups, optionally filtered.
func (c *HTTPClient) ListSubmissionGroups(ctx context.Context, filter GroupFilter) ([]SubmissionGroup, error) {
	q := url.Values{}
	for _, id := range filter.CourseIDs {
		q.Add("course_id", id)
	}
	for _, id := range filter.ContentIDs {
		q.Add("content_id", id)
	}
	var groups []SubmissionGroup
	if err := c.doJSON(ctx, http.MethodGet, "/submission-groups", q, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListSubmissions lists submitted artifacts of a group.
func (c *HTTPClient) ListSubmissions(ctx context.Context, groupID string) ([]Submission, error) {
	q := url.Values{"group_id": {groupID}}
	var submissions []Submission
	if err := c.doJSON(ctx, http.MethodGet, "/submissions", q, nil, &submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
