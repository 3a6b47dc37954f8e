package taxonomy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Kinder is implemented by errors that carry their own taxonomy kind.
// Transport-layer typed errors implement this so classification does not
// depend on string matching for the common cases.
type Kinder interface {
	ErrorKind() Kind
}

// Classify maps an error to a taxonomy kind. Classification is deterministic:
// the same error value always yields the same kind.
//
// Resolution order: explicit Kinder implementations, context errors, net
// errors, then message signatures. Anything unrecognized is KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var kinder Kinder
	if errors.As(err, &kinder) {
		return kinder.ErrorKind()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetworkError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetworkError
	}

	return classifyMessage(err.Error())
}

// classifyMessage matches well-known provider error signatures.
// Signatures are matched case-insensitively; the first match wins, so the
// order below is part of the contract.
func classifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)

	signatures := []struct {
		substr string
		kind   Kind
	}{
		{"rate limit", KindRateLimitExceeded},
		{"too many requests", KindRateLimitExceeded},
		{"quota", KindQuotaExceeded},
		{"billing", KindQuotaExceeded},
		{"unauthorized", KindAuthentication},
		{"invalid api key", KindAuthentication},
		{"authentication", KindAuthentication},
		{"forbidden", KindAuthentication},
		{"content filter", KindContentFilter},
		{"content_filter", KindContentFilter},
		{"content policy", KindContentFilter},
		{"model not found", KindModelUnavailable},
		{"model is not available", KindModelUnavailable},
		{"maximum context length", KindTokenLimitExceeded},
		{"context length exceeded", KindTokenLimitExceeded},
		{"timeout", KindTimeout},
		{"deadline exceeded", KindTimeout},
		{"connection refused", KindNetworkError},
		{"connection reset", KindNetworkError},
		{"no such host", KindNetworkError},
		{"broken pipe", KindNetworkError},
		{"overloaded", KindProviderUnavailable},
		{"service unavailable", KindProviderUnavailable},
		{"circuit breaker", KindCircuitBreakerOpen},
	}

	for _, sig := range signatures {
		if strings.Contains(lower, sig.substr) {
			return sig.kind
		}
	}
	return KindUnknown
}

// KindForStatus maps an HTTP status code to a taxonomy kind. Status-based
// classification takes precedence over message signatures because it is the
// most reliable signal providers give.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthentication
	case http.StatusPaymentRequired:
		return KindQuotaExceeded
	case http.StatusNotFound:
		return KindModelUnavailable
	case http.StatusRequestTimeout:
		return KindTimeout
	case http.StatusRequestEntityTooLarge:
		return KindTokenLimitExceeded
	case http.StatusTooManyRequests:
		return KindRateLimitExceeded
	case http.StatusUnavailableForLegalReasons:
		return KindContentFilter
	case http.StatusServiceUnavailable:
		return KindProviderUnavailable
	case http.StatusGatewayTimeout:
		return KindTimeout
	case http.StatusInsufficientStorage:
		return KindResourceExhausted
	}

	switch {
	case status >= 500:
		return KindServerError
	case status >= 400:
		return KindClientError
	default:
		return KindUnknown
	}
}
