package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"oneiro-hq/morpheus/pkg/providers"
)

// apiVersion is the Messages API version header value.
const apiVersion = "2023-06-01"

// Provider is the Anthropic adapter.
type Provider struct {
	*providers.HTTPClient
}

// New creates an Anthropic provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "anthropic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Anthropic",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("Anthropic provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

// headers returns the Messages API request headers.
func (p *Provider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.Config().APIKey,
		"anthropic-version": apiVersion,
		"Content-Type":      "application/json",
	}
}

// Generate sends one generation request to the Messages API.
func (p *Provider) Generate(ctx context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/messages", p.Config().BaseURL)

	var vendorResp messagesResponse
	if err := p.DoJSON(ctx, http.MethodPost, url, transformRequest(req), &vendorResp, p.headers()); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&vendorResp)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.Name(), Cause: err}
	}

	slog.Debug("generation succeeded",
		"provider", p.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// Stream sends a streaming generation request to the Messages API.
func (p *Provider) Stream(ctx context.Context, req *providers.GenerationRequest) (<-chan *providers.StreamChunk, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	vendorReq := transformRequest(req)
	vendorReq.Stream = true

	url := fmt.Sprintf("%s/v1/messages", p.Config().BaseURL)
	stream, err := providers.OpenSSEStream(ctx, p.HTTPClient, url, vendorReq, p.headers())
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk, 100)
	go p.readStream(ctx, stream, chunks)
	return chunks, nil
}

// Probe checks reachability with a one-token generation.
func (p *Provider) Probe(ctx context.Context) error {
	req := &messagesRequest{
		Model:     p.Config().Model,
		Messages:  []vendorMessage{{Role: providers.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	}

	url := fmt.Sprintf("%s/v1/messages", p.Config().BaseURL)
	var resp messagesResponse
	return p.DoJSON(ctx, http.MethodPost, url, req, &resp, p.headers())
}
