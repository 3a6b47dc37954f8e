package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// errorBodyLimit caps how much of an error response is kept for messages.
const errorBodyLimit = 2048

// HTTPClient is the base for HTTP adapters. It provides connection pooling,
// timeout handling, and status-code classification into typed errors.
//
// Each call is a single attempt. There is no retry loop here; the gateway's
// retry orchestrator decides whether and when a failed call is repeated.
type HTTPClient struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates the base client with a pooled transport.
func NewHTTPClient(config Config) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: slog.Default().With("component", "providers.http", "provider", config.Name),
	}
}

// Name returns the provider instance name.
func (c *HTTPClient) Name() string {
	return c.config.Name
}

// Type returns the adapter type.
func (c *HTTPClient) Type() string {
	return c.config.Type
}

// Config returns the provider configuration.
func (c *HTTPClient) Config() Config {
	return c.config
}

// Do performs one HTTP request. Non-2xx responses and network failures are
// returned as typed errors; the caller owns the response body on success.
func (c *HTTPClient) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending request", "method", method, "url", url)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Provider: c.config.Name, Timeout: c.config.Timeout}
		}
		return nil, &TransportError{Provider: c.config.Name, Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{Provider: c.config.Name, Message: string(errorBody)}

	case http.StatusTooManyRequests:
		return nil, &RateLimitError{
			Provider:   c.config.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    string(errorBody),
		}

	default:
		return nil, &StatusError{
			Provider:   c.config.Name,
			StatusCode: resp.StatusCode,
			Body:       string(errorBody),
		}
	}
}

// DoJSON performs a JSON request and decodes the response into respBody.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, reqBody, respBody any, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := c.Do(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Provider: c.config.Name,
			Cause:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			raw := responseBytes
			if len(raw) > errorBodyLimit {
				raw = raw[:errorBodyLimit]
			}
			return &ParseError{
				Provider:    c.config.Name,
				RawResponse: string(raw),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	c.logger.Debug("provider closed")
	return nil
}

// ValidateRequest checks the fields every adapter requires.
func ValidateRequest(req *GenerationRequest) error {
	if req == nil {
		return &RequestError{Field: "request", Message: "request cannot be nil"}
	}
	if req.Model == "" {
		return &RequestError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &RequestError{Field: "messages", Message: "at least one message is required"}
	}
	return nil
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}
