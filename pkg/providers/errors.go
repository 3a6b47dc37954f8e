package providers

import (
	"fmt"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// StatusError is a non-2xx response from a provider. Its taxonomy kind is
// derived from the HTTP status code.
type StatusError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code
	StatusCode int

	// Body is the error response body (truncated)
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %q returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ErrorKind implements taxonomy.Kinder.
func (e *StatusError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindForStatus(e.StatusCode)
}

// AuthError is an authentication rejection (HTTP 401 or 403).
type AuthError struct {
	// Provider is the name of the provider that rejected authentication
	Provider string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.Provider, e.Message)
}

// ErrorKind implements taxonomy.Kinder.
func (e *AuthError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindAuthentication
}

// RateLimitError is a vendor-side rate limit rejection (HTTP 429).
type RateLimitError struct {
	// Provider is the name of the provider that rate limited the request
	Provider string

	// RetryAfter is the wait the vendor requested, if any
	RetryAfter time.Duration

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// ErrorKind implements taxonomy.Kinder.
func (e *RateLimitError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindRateLimitExceeded
}

// TimeoutError is a request that exceeded its deadline.
type TimeoutError struct {
	// Provider is the name of the provider where the timeout occurred
	Provider string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// ErrorKind implements taxonomy.Kinder.
func (e *TimeoutError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindTimeout
}

// TransportError is a network-level failure before any response arrived.
type TransportError struct {
	// Provider is the name of the provider being contacted
	Provider string

	// Cause is the underlying network error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %q network error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ErrorKind implements taxonomy.Kinder.
func (e *TransportError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindNetworkError
}

// ParseError is a malformed vendor response.
type ParseError struct {
	// Provider is the name of the provider that returned the response
	Provider string

	// RawResponse is the body that failed to parse (truncated)
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ErrorKind implements taxonomy.Kinder.
func (e *ParseError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindParsingError
}

// StreamError is a failure that occurred mid-stream.
type StreamError struct {
	// Provider is the name of the provider where the error occurred
	Provider string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// ErrorKind implements taxonomy.Kinder.
func (e *StreamError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindStreamingError
}

// RequestError is an invalid outgoing request, caught before dispatch.
type RequestError struct {
	// Field is the invalid request field
	Field string

	// Message describes what is invalid
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request field %q: %s", e.Field, e.Message)
}

// ErrorKind implements taxonomy.Kinder.
func (e *RequestError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindClientError
}

// ConfigError is an invalid provider configuration.
type ConfigError struct {
	// Provider is the name of the misconfigured provider
	Provider string

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

// ErrorKind implements taxonomy.Kinder.
func (e *ConfigError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindConfigurationError
}
