package generic

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"oneiro-hq/morpheus/pkg/providers"
)

// chatRequest mirrors the OpenAI Chat Completions request, which local
// inference servers broadly accept.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Provider is the generic OpenAI-compatible adapter. An API key is
// optional; when present it is sent as a bearer token.
type Provider struct {
	*providers.HTTPClient
}

// New creates a generic provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "generic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required for generic providers",
		}
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("generic provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

// headers returns request headers, including auth only when configured.
func (p *Provider) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if key := p.Config().APIKey; key != "" {
		h["Authorization"] = "Bearer " + key
	}
	return h
}

// Generate sends one generation request.
func (p *Provider) Generate(ctx context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	vendorReq := &chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	for _, m := range req.Messages {
		vendorReq.Messages = append(vendorReq.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	url := fmt.Sprintf("%s/v1/chat/completions", p.Config().BaseURL)
	var vendorResp chatResponse
	if err := p.DoJSON(ctx, http.MethodPost, url, vendorReq, &vendorResp, p.headers()); err != nil {
		return nil, err
	}

	if len(vendorResp.Choices) == 0 {
		return nil, &providers.ParseError{
			Provider: p.Name(),
			Cause:    fmt.Errorf("response has no choices"),
		}
	}

	created := vendorResp.Created
	if created == 0 {
		created = time.Now().Unix()
	}

	return &providers.GenerationResponse{
		ID:           vendorResp.ID,
		Model:        vendorResp.Model,
		Content:      vendorResp.Choices[0].Message.Content,
		FinishReason: vendorResp.Choices[0].FinishReason,
		Usage: providers.TokenUsage{
			PromptTokens:     vendorResp.Usage.PromptTokens,
			CompletionTokens: vendorResp.Usage.CompletionTokens,
			TotalTokens:      vendorResp.Usage.TotalTokens,
		},
		Created: created,
	}, nil
}

// Stream emulates streaming with a single buffered generation. Local
// servers vary widely in SSE support; one final chunk keeps the contract.
func (p *Provider) Stream(ctx context.Context, req *providers.GenerationRequest) (<-chan *providers.StreamChunk, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk, 1)
	go func() {
		defer close(chunks)

		resp, err := p.Generate(ctx, req)
		if err != nil {
			chunks <- &providers.StreamChunk{Error: err}
			return
		}
		chunks <- &providers.StreamChunk{
			ID:           resp.ID,
			Model:        resp.Model,
			Delta:        resp.Content,
			FinishReason: resp.FinishReason,
			Usage:        &resp.Usage,
		}
	}()
	return chunks, nil
}

// Probe checks reachability against the models listing endpoint.
func (p *Provider) Probe(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/models", p.Config().BaseURL)
	resp, err := p.Do(ctx, http.MethodGet, url, nil, p.headers())
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
