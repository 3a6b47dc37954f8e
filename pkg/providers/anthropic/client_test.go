package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oneiro-hq/morpheus/pkg/providers"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := New(providers.Config{
		Name:    "anthropic-test",
		Type:    "anthropic",
		BaseURL: server.URL,
		APIKey:  "sk-ant-test",
		Model:   "claude-3-haiku-20240307",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestGenerate_TransformsMessages(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Path = %q, want /v1/messages", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "sk-ant-test" {
			t.Errorf("x-api-key = %q", key)
		}
		if v := r.Header.Get("anthropic-version"); v != apiVersion {
			t.Errorf("anthropic-version = %q", v)
		}

		var req messagesRequest
		json.NewDecoder(r.Body).Decode(&req)

		// System messages are hoisted, not sent in the messages array.
		if req.System == "" {
			t.Error("Expected system prompt to be hoisted")
		}
		for _, m := range req.Messages {
			if m.Role == providers.RoleSystem {
				t.Error("System role must not appear in messages")
			}
		}
		if req.MaxTokens <= 0 {
			t.Error("max_tokens is required")
		}

		json.NewEncoder(w).Encode(messagesResponse{
			ID:         "msg-1",
			Model:      "claude-3-opus-20240229",
			Content:    []contentBlock{{Type: "text", Text: `{"title":"Tides"}`}},
			StopReason: "end_turn",
			Usage:      vendorUsage{InputTokens: 15, OutputTokens: 8},
		})
	})

	resp, err := p.Generate(context.Background(), &providers.GenerationRequest{
		Model: "claude-3-opus-20240229",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "respond with JSON"},
			{Role: providers.RoleUser, Content: "a dream about tides"},
		},
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if resp.Content != `{"title":"Tides"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("FinishReason = %q, want stop (mapped from end_turn)", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 23 {
		t.Errorf("TotalTokens = %d, want 23", resp.Usage.TotalTokens)
	}
}

func TestMapStopReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"end_turn", providers.FinishReasonStop},
		{"stop_sequence", providers.FinishReasonStop},
		{"max_tokens", providers.FinishReasonLength},
		{"other", "other"},
	}
	for _, tt := range tests {
		if got := mapStopReason(tt.in); got != tt.want {
			t.Errorf("mapStopReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStream_AssemblesDeltas(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(
			"event: message_start\n" +
				"data: {\"type\":\"message_start\",\"message\":{\"id\":\"msg-1\",\"model\":\"claude-3-opus-20240229\"}}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"{\\\"title\\\":\"}}\n\n" +
				"event: content_block_delta\n" +
				"data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"\\\"Sea\\\"}\"}}\n\n" +
				"event: message_delta\n" +
				"data: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"input_tokens\":5,\"output_tokens\":7}}\n\n"))
	})

	chunks, err := p.Stream(context.Background(), &providers.GenerationRequest{
		Model:    "claude-3-opus-20240229",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "sea dream"}},
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	var assembled, finish string
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("Stream chunk error: %v", chunk.Error)
		}
		assembled += chunk.Delta
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}

	if assembled != `{"title":"Sea"}` {
		t.Errorf("Assembled = %q", assembled)
	}
	if finish != providers.FinishReasonStop {
		t.Errorf("FinishReason = %q, want stop", finish)
	}
}
