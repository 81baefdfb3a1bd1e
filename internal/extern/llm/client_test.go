package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clipspace/internal/extern"
)

func completionResponse(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"content": content},
			},
		},
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionResponse(`{"ok":true}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewEncoder(w).Encode(completionResponse("```json\n{\"ok\":true}\n```")); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientUnauthorizedMapsToAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, extern.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if err := json.NewEncoder(w).Encode(completionResponse(`{"done":true}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryMaxAttempts(3),
		WithSleeper(func(time.Duration) {}),
	)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"done":true}` {
		t.Fatalf("unexpected content: %q", content)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestClientDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo"},
		WithRetryMaxAttempts(3),
		WithSleeper(func(time.Duration) {}),
	)
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("400 should not be retried, got %d attempts", got)
	}
}

func TestCompleteVisionSendsImagePart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "vision-model" {
			t.Fatalf("expected vision model, got %q", req.Model)
		}
		var parts []map[string]any
		if err := json.Unmarshal(req.Messages[1].Content, &parts); err != nil {
			t.Fatalf("user content not multipart: %v", err)
		}
		if len(parts) != 2 || parts[1]["type"] != "image_url" {
			t.Fatalf("unexpected content parts: %v", parts)
		}
		if err := json.NewEncoder(w).Encode(completionResponse(`{"title":"x"}`)); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey: "test", BaseURL: server.URL,
		Model: "text-model", VisionModel: "vision-model",
	})
	if _, err := client.CompleteVisionJSON(context.Background(), "system", "describe", "data:image/png;base64,AAAA"); err != nil {
		t.Fatalf("CompleteVisionJSON returned error: %v", err)
	}
}

func TestDecodeLLMJSONHandlesLeadingProse(t *testing.T) {
	var target struct {
		Title string `json:"title"`
	}
	if err := DecodeLLMJSON("Sure! Here is the JSON: {\"title\":\"ok\"} hope that helps", &target); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if target.Title != "ok" {
		t.Fatalf("unexpected decode result: %+v", target)
	}
}
