package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"talkcoach/internal/config"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
}

func TestClientCompleteText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "response_format") {
			t.Fatalf("plain text request should not force a response format: %s", body)
		}
		if err := json.NewEncoder(w).Encode(chatResponse("A short recap.")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(config.LLM{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.CompleteText(context.Background(), "You are a recap writer.", "transcript here")
	if err != nil {
		t.Fatalf("CompleteText returned error: %v", err)
	}
	if content != "A short recap." {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientCompleteJSONRequestsJSONFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req chatCompletionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != jsonResponseType {
			t.Fatalf("expected json response format, got %+v", req.ResponseFormat)
		}
		if req.Temperature == nil || *req.Temperature != 0 {
			t.Fatalf("expected zero temperature for JSON request, got %v", req.Temperature)
		}
		if err := json.NewEncoder(w).Encode(chatResponse(`{"sentiment":"positive"}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(config.LLM{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.CompleteJSON(context.Background(), "Respond with JSON.", "analyze this")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if !strings.Contains(content, "positive") {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientDeltaContentFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"delta": map[string]any{
						"content": "streamed text",
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(config.LLM{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	content, err := client.CompleteText(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteText returned error: %v", err)
	}
	if content != "streamed text" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse("recovered"))
	}))
	defer server.Close()

	client := NewClient(
		config.LLM{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithBackoff(0, 0),
	)
	content, err := client.CompleteText(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteText returned error: %v", err)
	}
	if content != "recovered" {
		t.Fatalf("unexpected content %q", content)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestClientDoesNotRetryAuthFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(
		config.LLM{APIKey: "bad", BaseURL: server.URL, Model: "demo-model"},
		WithBackoff(0, 0),
	)
	if _, err := client.CompleteText(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected auth failure")
	}
	if calls != 1 {
		t.Fatalf("auth failure should not retry, got %d calls", calls)
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse(""))
	}))
	defer server.Close()

	client := NewClient(
		config.LLM{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithBackoff(0, 0),
		WithMaxRetries(0),
	)
	_, err := client.CompleteText(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected empty content error")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "payload snippet") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
}

func TestDecodeLLMJSONCodeFence(t *testing.T) {
	var parsed struct {
		Label string `json:"label"`
	}
	content := "```json\n{\"label\":\"positive\"}\n```"
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if parsed.Label != "positive" {
		t.Fatalf("unexpected label %q", parsed.Label)
	}
}

func TestDecodeLLMJSONSurroundingProse(t *testing.T) {
	var parsed struct {
		Topics []string `json:"topics"`
	}
	content := "Here is the analysis you asked for: {\"topics\":[\"pricing\",\"roadmap\"]} hope it helps."
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if len(parsed.Topics) != 2 || parsed.Topics[0] != "pricing" {
		t.Fatalf("unexpected topics %v", parsed.Topics)
	}
}

func TestDecodeLLMJSONRejectsEmpty(t *testing.T) {
	var target map[string]any
	if err := DecodeLLMJSON("   ", &target); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
