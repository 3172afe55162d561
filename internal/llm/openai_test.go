package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionBody(content string) string {
	resp := map[string]interface{}{
		"id":    "cmpl-1",
		"model": "test-model",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func newTestClient(baseURL string) *OpenAIClient {
	return NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func TestOpenAIComplete(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionBody("  the answer  ")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	out, err := client.Complete(context.Background(), Request{
		System:      "be helpful",
		Prompt:      "question",
		MaxTokens:   100,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "the answer" {
		t.Fatalf("completion = %q (must be trimmed)", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != 100 {
		t.Fatalf("max_tokens = %d", gotReq.MaxTokens)
	}
}

func TestOpenAIComplete_RetriesOn429(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	out, err := client.Complete(context.Background(), Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("Complete after 429: %v", err)
	}
	if out != "recovered" {
		t.Fatalf("completion = %q", out)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestOpenAIComplete_NonRetryableStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Complete(context.Background(), Request{Prompt: "q"}); err == nil {
		t.Fatal("401 must be a hard error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("401 must not be retried, got %d attempts", calls)
	}
}

func TestOpenAIComplete_APIErrorInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "model overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Complete(context.Background(), Request{Prompt: "q"}); err == nil {
		t.Fatal("an error payload must fail the call")
	}
}

func TestOpenAIComplete_MissingAPIKey(t *testing.T) {
	client := NewOpenAIClientWithConfig(OpenAIConfig{BaseURL: "http://unused", Model: "m"})
	if _, err := client.Complete(context.Background(), Request{Prompt: "q"}); err == nil {
		t.Fatal("missing API key must fail before any request")
	}
}
