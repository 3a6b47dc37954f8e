package providers

import "time"

// Message is a single message in a generation conversation.
// It is provider-agnostic and transformed to vendor formats by adapters.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// GenerationRequest is a provider-agnostic dream generation request.
// Adapters transform it to vendor-specific wire formats.
type GenerationRequest struct {
	// Model is the model identifier (e.g. "gpt-4", "claude-3-opus-20240229")
	Model string `json:"model"`

	// Messages is the conversation: a system prompt describing the
	// structured output contract followed by the user's dream prompt,
	// and on retries an appended corrective message.
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 1.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// Stream requests an SSE streaming response
	Stream bool `json:"stream,omitempty"`

	// Stop sequences that halt generation
	Stop []string `json:"stop,omitempty"`

	// RequestID correlates the call with gateway logs and metrics.
	// Not sent to the provider.
	RequestID string `json:"-"`
}

// GenerationResponse is a normalized provider response.
type GenerationResponse struct {
	// ID is the vendor's response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Content is the generated text, expected to carry a JSON document
	Content string `json:"content"`

	// FinishReason indicates why generation stopped
	// (stop, length, content_filter)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption
	Usage TokenUsage `json:"usage"`

	// Created is the Unix timestamp the vendor reports
	Created int64 `json:"created"`
}

// StreamChunk is a single chunk in a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included in the final chunk when the vendor reports it
	Usage *TokenUsage `json:"usage,omitempty"`

	// Error is set if the stream failed; no chunks follow it
	Error error `json:"-"`
}

// Config holds the per-provider settings adapters and the gateway consume.
type Config struct {
	// Name is the provider instance identifier (e.g. "openai-primary")
	Name string

	// Type selects the adapter (openai, anthropic, generic)
	Type string

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is the authentication key
	APIKey string

	// Model is the default model for this provider instance
	Model string

	// Timeout is the per-request timeout
	Timeout time.Duration

	// Priority orders providers for selection; higher is preferred
	Priority int

	// RPM is the requests-per-minute admission limit
	RPM int

	// MaxConcurrent is the in-flight request ceiling
	MaxConcurrent int

	// MaxOutputTokens caps MaxTokens escalation during retries
	MaxOutputTokens int

	// SLATargetMs is the latency target used by health evaluation
	SLATargetMs int

	// MaxIdleConns is the connection pool size
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host idle connection cap
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)
