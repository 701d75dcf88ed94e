package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBedrockProviderUnconfigured(t *testing.T) {
	p := NewBedrockProvider("", "", "")
	_, err := p.Invoke(context.Background(), &Request{Prompt: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBedrockProviderInvoke(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "generated text"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 34, "total_tokens": 46},
		})
	}))
	defer srv.Close()

	p := NewBedrockProvider("test-key", srv.URL, "model-a")
	got, err := p.Invoke(context.Background(), &Request{
		System:      "You are a helpdesk assistant.",
		Prompt:      "Cannot login",
		MaxTokens:   256,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got.Text != "generated text" {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if got.Usage.InputTokens != 12 || got.Usage.OutputTokens != 34 || got.Usage.TotalTokens != 46 {
		t.Fatalf("unexpected usage %+v", got.Usage)
	}
	if gotBody["model"] != "model-a" {
		t.Fatalf("default model not applied: %v", gotBody["model"])
	}
}

func TestBedrockProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewBedrockProvider("k", srv.URL, "")
	_, err := p.Invoke(context.Background(), &Request{Prompt: "hi"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on 503, got %v", err)
	}
}

func TestEstimateTokens(t *testing.T) {
	if n := EstimateTokens(""); n != 0 {
		t.Fatalf("empty text should estimate 0, got %d", n)
	}
	if n := EstimateTokens("abc"); n != 1 {
		t.Fatalf("short text should round up to 1, got %d", n)
	}
	if n := EstimateTokens("aaaabbbbcccc"); n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}
