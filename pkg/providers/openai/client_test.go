package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oneiro-hq/morpheus/pkg/providers"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := New(providers.Config{
		Name:    "openai-test",
		Type:    "openai",
		BaseURL: server.URL,
		APIKey:  "sk-test",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, server
}

func testRequest() *providers.GenerationRequest {
	return &providers.GenerationRequest{
		Model: "gpt-4",
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "respond with JSON"},
			{Role: providers.RoleUser, Content: "a dream about dragons"},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

func TestGenerate_Success(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Path = %q, want /v1/chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}

		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("Expected json_object response format")
		}

		json.NewEncoder(w).Encode(chatResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4",
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: `{"title":"Dragons"}`},
				FinishReason: "stop",
			}},
			Usage: chatUsage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
		})
	})

	resp, err := p.Generate(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Content != `{"title":"Dragons"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d, want 30", resp.Usage.TotalTokens)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{ID: "chatcmpl-2", Model: "gpt-4"})
	})

	_, err := p.Generate(context.Background(), testRequest())
	if _, ok := err.(*providers.ParseError); !ok {
		t.Fatalf("Expected ParseError, got %T: %v", err, err)
	}
}

func TestStream_DeliversDeltas(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(
			"data: {\"id\":\"c1\",\"model\":\"gpt-4\",\"choices\":[{\"delta\":{\"content\":\"{\\\"title\\\":\"}}]}\n\n" +
				"data: {\"id\":\"c1\",\"model\":\"gpt-4\",\"choices\":[{\"delta\":{\"content\":\"\\\"Dream\\\"}\"},\"finish_reason\":\"stop\"}]}\n\n" +
				"data: [DONE]\n\n"))
	})

	req := testRequest()
	req.Stream = true

	chunks, err := p.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	var assembled string
	var finish string
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("Stream chunk error: %v", chunk.Error)
		}
		assembled += chunk.Delta
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}

	if assembled != `{"title":"Dream"}` {
		t.Errorf("Assembled = %q", assembled)
	}
	if finish != "stop" {
		t.Errorf("FinishReason = %q, want stop", finish)
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(providers.Config{Name: "openai-test"})
	if _, ok := err.(*providers.ConfigError); !ok {
		t.Fatalf("Expected ConfigError, got %T: %v", err, err)
	}
}
