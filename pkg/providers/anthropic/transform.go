package anthropic

import (
	"fmt"
	"time"

	"oneiro-hq/morpheus/pkg/providers"
)

// messagesRequest is the Anthropic Messages API request body.
type messagesRequest struct {
	Model         string          `json:"model"`
	System        string          `json:"system,omitempty"`
	Messages      []vendorMessage `json:"messages"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   float64         `json:"temperature,omitempty"`
	TopP          float64         `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

type vendorMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic Messages API response body.
type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      vendorUsage    `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type vendorUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// defaultMaxTokens is used when the request does not set one; the Messages
// API requires max_tokens.
const defaultMaxTokens = 4096

// transformRequest converts the provider-agnostic request to the Messages
// API shape. System messages are hoisted into the top-level system field.
func transformRequest(req *providers.GenerationRequest) *messagesRequest {
	out := &messagesRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaultMaxTokens
	}

	for _, m := range req.Messages {
		if m.Role == providers.RoleSystem {
			if out.System != "" {
				out.System += "\n\n"
			}
			out.System += m.Content
			continue
		}
		out.Messages = append(out.Messages, vendorMessage{Role: m.Role, Content: m.Content})
	}

	return out
}

// transformResponse normalizes a Messages API response.
func transformResponse(resp *messagesResponse) (*providers.GenerationResponse, error) {
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("response has no content blocks")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &providers.GenerationResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      text,
		FinishReason: mapStopReason(resp.StopReason),
		Usage: providers.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Created: time.Now().Unix(),
	}, nil
}

// mapStopReason maps Anthropic stop reasons to the normalized set.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishReasonStop
	case "max_tokens":
		return providers.FinishReasonLength
	default:
		return reason
	}
}
