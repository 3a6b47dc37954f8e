package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"oneiro-hq/morpheus/pkg/providers"
)

// streamChunkPayload is one Chat Completions SSE data payload.
type streamChunkPayload struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// readStream decodes Chat Completions SSE payloads into StreamChunks until
// the [DONE] sentinel, end of stream, or a failure. It always closes the
// output channel.
func (p *Provider) readStream(ctx context.Context, stream *providers.SSEStream, chunks chan<- *providers.StreamChunk) {
	defer close(chunks)
	defer stream.Close()

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			chunks <- &providers.StreamChunk{Error: err}
			return
		}

		if event.Data == "[DONE]" {
			return
		}

		var payload streamChunkPayload
		if err := json.Unmarshal([]byte(event.Data), &payload); err != nil {
			chunks <- &providers.StreamChunk{Error: &providers.StreamError{
				Provider: p.Name(),
				Message:  "malformed stream chunk",
				Cause:    err,
			}}
			return
		}

		chunk := &providers.StreamChunk{ID: payload.ID, Model: payload.Model}
		if len(payload.Choices) > 0 {
			chunk.Delta = payload.Choices[0].Delta.Content
			chunk.FinishReason = payload.Choices[0].FinishReason
		}
		if payload.Usage != nil {
			chunk.Usage = &providers.TokenUsage{
				PromptTokens:     payload.Usage.PromptTokens,
				CompletionTokens: payload.Usage.CompletionTokens,
				TotalTokens:      payload.Usage.TotalTokens,
			}
		}

		// Usage-only trailing chunks have no choices and no delta.
		if chunk.Delta == "" && chunk.FinishReason == "" && chunk.Usage == nil {
			continue
		}

		select {
		case chunks <- chunk:
		case <-ctx.Done():
			return
		}
	}
}
