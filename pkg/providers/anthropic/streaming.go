package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"oneiro-hq/morpheus/pkg/providers"
)

// streamEvent is the union of Messages API SSE event payloads the adapter
// consumes. Unknown event types are skipped.
type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"message"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage vendorUsage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// readStream decodes Messages API SSE events into StreamChunks until the
// stream ends or fails. It always closes the output channel.
func (p *Provider) readStream(ctx context.Context, stream *providers.SSEStream, chunks chan<- *providers.StreamChunk) {
	defer close(chunks)
	defer stream.Close()

	var id, model string

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			chunks <- &providers.StreamChunk{Error: err}
			return
		}

		var payload streamEvent
		if err := json.Unmarshal([]byte(event.Data), &payload); err != nil {
			chunks <- &providers.StreamChunk{Error: &providers.StreamError{
				Provider: p.Name(),
				Message:  "malformed stream event",
				Cause:    err,
			}}
			return
		}

		switch payload.Type {
		case "message_start":
			id = payload.Message.ID
			model = payload.Message.Model

		case "content_block_delta":
			if payload.Delta.Type != "text_delta" {
				continue
			}
			select {
			case chunks <- &providers.StreamChunk{ID: id, Model: model, Delta: payload.Delta.Text}:
			case <-ctx.Done():
				return
			}

		case "message_delta":
			if payload.Delta.StopReason == "" {
				continue
			}
			usage := providers.TokenUsage{
				PromptTokens:     payload.Usage.InputTokens,
				CompletionTokens: payload.Usage.OutputTokens,
				TotalTokens:      payload.Usage.InputTokens + payload.Usage.OutputTokens,
			}
			select {
			case chunks <- &providers.StreamChunk{
				ID:           id,
				Model:        model,
				FinishReason: mapStopReason(payload.Delta.StopReason),
				Usage:        &usage,
			}:
			case <-ctx.Done():
			}
			return

		case "message_stop":
			return

		case "error":
			chunks <- &providers.StreamChunk{Error: &providers.StreamError{
				Provider: p.Name(),
				Message:  payload.Error.Message,
			}}
			return
		}
	}
}
