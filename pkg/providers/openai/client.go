package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"oneiro-hq/morpheus/pkg/providers"
)

// Provider is the OpenAI adapter. It also serves OpenAI-compatible
// endpoints (Azure deployments, local inference servers) via BaseURL.
type Provider struct {
	*providers.HTTPClient
}

// New creates an OpenAI provider instance.
func New(config providers.Config) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "openai",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for OpenAI",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	p := &Provider{HTTPClient: providers.NewHTTPClient(config)}

	slog.Info("OpenAI provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

// headers returns the Chat Completions request headers.
func (p *Provider) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.Config().APIKey,
		"Content-Type":  "application/json",
	}
}

// Generate sends one generation request to the Chat Completions API.
func (p *Provider) Generate(ctx context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/chat/completions", p.Config().BaseURL)

	var vendorResp chatResponse
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

// Stream sends a streaming generation request to the Chat Completions API.
func (p *Provider) Stream(ctx context.Context, req *providers.GenerationRequest) (<-chan *providers.StreamChunk, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	vendorReq := transformRequest(req)
	vendorReq.Stream = true
	vendorReq.StreamOptions = &streamOptionsField{IncludeUsage: true}

	url := fmt.Sprintf("%s/v1/chat/completions", p.Config().BaseURL)
	stream, err := providers.OpenSSEStream(ctx, p.HTTPClient, url, vendorReq, p.headers())
	if err != nil {
		return nil, err
	}

	chunks := make(chan *providers.StreamChunk, 100)
	go p.readStream(ctx, stream, chunks)
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
