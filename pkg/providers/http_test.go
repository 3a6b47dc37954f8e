package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

func testConfig(baseURL string) Config {
	return Config{
		Name:    "test-provider",
		Type:    "generic",
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}
}

// ============================================================================
// Status Classification Tests
// ============================================================================

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig(server.URL))
	defer c.Close()

	resp, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	resp.Body.Close()
}

func TestDo_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig(server.URL))
	defer c.Close()

	_, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %T: %v", err, err)
	}
	if authErr.ErrorKind() != taxonomy.KindAuthentication {
		t.Errorf("Kind = %s, want authentication", authErr.ErrorKind())
	}
}

func TestDo_RateLimitWithRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig(server.URL))
	defer c.Close()

	_, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("Expected RateLimitError, got %T: %v", err, err)
	}
	if rlErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %s, want 7s", rlErr.RetryAfter)
	}
	if rlErr.ErrorKind() != taxonomy.KindRateLimitExceeded {
		t.Errorf("Kind = %s, want rate_limit_exceeded", rlErr.ErrorKind())
	}
}

func TestDo_ServerErrorKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig(server.URL))
	defer c.Close()

	_, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %T: %v", err, err)
	}
	if statusErr.ErrorKind() != taxonomy.KindServerError {
		t.Errorf("Kind = %s, want server_error", statusErr.ErrorKind())
	}
}

func TestDo_ServiceUnavailableKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig(server.URL))
	defer c.Close()

	_, err := c.Do(context.Background(), http.MethodGet, server.URL, nil, nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %T: %v", err, err)
	}
	if statusErr.ErrorKind() != taxonomy.KindProviderUnavailable {
		t.Errorf("Kind = %s, want provider_unavailable", statusErr.ErrorKind())
	}
}

func TestDo_NetworkError(t *testing.T) {
	// Point at a server that is not listening.
	c := NewHTTPClient(testConfig("http://127.0.0.1:1"))
	defer c.Close()

	_, err := c.Do(context.Background(), http.MethodGet, "http://127.0.0.1:1/x", nil, nil)

	var netErr *TransportError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected TransportError, got %T: %v", err, err)
	}
	if netErr.ErrorKind() != taxonomy.KindNetworkError {
		t.Errorf("Kind = %s, want network_error", netErr.ErrorKind())
	}
}

func TestDo_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 5 * time.Second
	c := NewHTTPClient(cfg)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, http.MethodGet, server.URL, nil, nil)

	var toErr *TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("Expected TimeoutError, got %T: %v", err, err)
	}
	if toErr.ErrorKind() != taxonomy.KindTimeout {
		t.Errorf("Kind = %s, want timeout", toErr.ErrorKind())
	}
}

// ============================================================================
// DoJSON Tests
// ============================================================================

func TestDoJSON_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		w.Write([]byte(`{"value":"hello"}`))
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig(server.URL))
	defer c.Close()

	var out struct {
		Value string `json:"value"`
	}
	err := c.DoJSON(context.Background(), http.MethodPost, server.URL,
		map[string]string{"in": "x"}, &out, nil)
	if err != nil {
		t.Fatalf("DoJSON returned error: %v", err)
	}
	if out.Value != "hello" {
		t.Errorf("Value = %q, want hello", out.Value)
	}
}

func TestDoJSON_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := NewHTTPClient(testConfig(server.URL))
	defer c.Close()

	var out map[string]any
	err := c.DoJSON(context.Background(), http.MethodGet, server.URL, nil, &out, nil)

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %T: %v", err, err)
	}
	if parseErr.ErrorKind() != taxonomy.KindParsingError {
		t.Errorf("Kind = %s, want parsing_error", parseErr.ErrorKind())
	}
}

// ============================================================================
// Request Validation Tests
// ============================================================================

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *GenerationRequest
		wantErr bool
	}{
		{"nil request", nil, true},
		{"missing model", &GenerationRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}}, true},
		{"missing messages", &GenerationRequest{Model: "gpt-4"}, true},
		{"valid", &GenerationRequest{Model: "gpt-4", Messages: []Message{{Role: RoleUser, Content: "x"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("30"); d != 30*time.Second {
		t.Errorf("parseRetryAfter(30) = %s, want 30s", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("parseRetryAfter(empty) = %s, want 0", d)
	}
}
