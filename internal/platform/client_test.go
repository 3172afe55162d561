package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPlatformServer stands in for the platform REST API. Each handler is
// registered on its real path so the client's routing is exercised too.
func newPlatformServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestGetMessages(t *testing.T) {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	want := []Message{
		{ID: "m1", ConversationID: "conv-1", AuthorID: "u1", Content: "hello", CreatedAt: created},
		{ID: "m2", ConversationID: "conv-1", AuthorID: "u2", Content: "hi", CreatedAt: created.Add(time.Minute)},
	}

	var gotAuth, gotQuery string
	server := newPlatformServer(t, map[string]http.HandlerFunc{
		"/messages": func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotQuery = r.URL.Query().Get("conversation_id")
			writeJSON(w, want)
		},
	})

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL, Token: "secret"})
	messages, err := client.GetMessages(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "conv-1", gotQuery)
	if diff := cmp.Diff(want, messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateMessage(t *testing.T) {
	var gotPayload map[string]string
	server := newPlatformServer(t, map[string]http.HandlerFunc{
		"/messages": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			writeJSON(w, Message{ID: "m-new", ConversationID: gotPayload["conversation_id"], Content: gotPayload["content"]})
		},
	})

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL})
	created, err := client.CreateMessage(context.Background(), "conv-1", "answer text", "Re: help")
	require.NoError(t, err)
	assert.Equal(t, "m-new", created.ID)
	assert.Equal(t, map[string]string{
		"conversation_id": "conv-1",
		"content":         "answer text",
		"title":           "Re: help",
	}, gotPayload)
}

func TestCreateMessage_OmitsEmptyTitle(t *testing.T) {
	var gotPayload map[string]string
	server := newPlatformServer(t, map[string]http.HandlerFunc{
		"/messages": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotPayload)
			writeJSON(w, Message{ID: "m-new"})
		},
	})

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL})
	_, err := client.CreateMessage(context.Background(), "conv-1", "body", "")
	require.NoError(t, err)
	_, hasTitle := gotPayload["title"]
	assert.False(t, hasTitle, "empty title must not be sent")
}

func TestUpdateSubmissionGrading(t *testing.T) {
	grade := 0.85
	var gotUpdate GradingUpdate
	server := newPlatformServer(t, map[string]http.HandlerFunc{
		"/submission-groups/conv-1/grading": func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPatch, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotUpdate))
			w.WriteHeader(http.StatusNoContent)
		},
	})

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL})
	err := client.UpdateSubmissionGrading(context.Background(), "conv-1", GradingUpdate{
		Status:  1,
		Grade:   &grade,
		Comment: "needs a fix in loop bounds",
	})
	require.NoError(t, err)
	require.NotNil(t, gotUpdate.Grade)
	assert.Equal(t, 0.85, *gotUpdate.Grade)
	assert.Equal(t, 1, gotUpdate.Status)
}

func TestListSubmissionGroups_Filter(t *testing.T) {
	server := newPlatformServer(t, map[string]http.HandlerFunc{
		"/submission-groups": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.ElementsMatch(t, []string{"course-a", "course-b"}, q["course_id"])
			assert.Equal(t, []string{"content-x"}, q["content_id"])
			writeJSON(w, []SubmissionGroup{{ID: "conv-1", CourseID: "course-a", ContentID: "content-x"}})
		},
	})

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL})
	groups, err := client.ListSubmissionGroups(context.Background(), GroupFilter{
		CourseIDs:  []string{"course-a", "course-b"},
		ContentIDs: []string{"content-x"},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "conv-1", groups[0].ID)
}

func TestErrorStatusIncludesBody(t *testing.T) {
	server := newPlatformServer(t, map[string]http.HandlerFunc{
		"/messages": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"detail": "token expired"}`))
		},
	})

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL, Token: "stale"})
	_, err := client.GetMessages(context.Background(), "conv-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "token expired")
}

func TestGetCourseContent(t *testing.T) {
	maxGrade := 10.0
	want := &CourseContent{
		ID:          "content-x",
		CourseID:    "course-a",
		Title:       "Exercise 3: Pointers",
		Description: "Implement a linked list.",
		MaxGrade:    &maxGrade,
	}
	server := newPlatformServer(t, map[string]http.HandlerFunc{
		"/course-contents/content-x": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, want)
		},
	})

	client := NewHTTPClient(HTTPConfig{BaseURL: server.URL})
	got, err := client.GetCourseContent(context.Background(), "content-x")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestIsStaffRole(t *testing.T) {
	for role, want := range map[string]bool{
		RoleStudent:    false,
		RoleTutor:      true,
		RoleLecturer:   true,
		RoleMaintainer: true,
		RoleOwner:      true,
		"":             false,
		"observer":     false,
	} {
		assert.Equal(t, want, IsStaffRole(role), "role %q", role)
	}
}
