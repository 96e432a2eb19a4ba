package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Corphon/PersonaMarket/internal/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) llm.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := llm.GetProvider("openrouter", map[string]string{
		"api_key":       "test-key",
		"base_url":      srv.URL,
		"default_model": "test/model",
	})
	if err != nil {
		t.Fatalf("GetProvider: %v", err)
	}
	return p
}

func TestCompleteText(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "test/model" || req.MaxTokens != 300 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"test/model","choices":[{"message":{"content":"Threads of Heritage"},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`))
	})

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "title", MaxTokens: 300, Temperature: 0.8})
	if err != nil {
		t.Fatalf("CompleteText: %v", err)
	}
	if resp.Text != "Threads of Heritage" || resp.TokensUsed != 12 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCompleteText_Errors(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})
	if _, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for non-2xx status")
	}

	empty := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	if _, err := empty.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"}); err != llm.ErrEmptyResponse {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestInitializeRequiresKey(t *testing.T) {
	if _, err := llm.GetProvider("openrouter", map[string]string{}); err != llm.ErrMissingAPIKey {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
