package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

// ============================================================================
// Kind Traits Tests
// ============================================================================

func TestKind_TraitsFixed(t *testing.T) {
	tests := []struct {
		kind      Kind
		severity  Severity
		category  Category
		retryable bool
	}{
		{KindRateLimitExceeded, SeverityMedium, CategoryCapacity, true},
		{KindAuthentication, SeverityCritical, CategoryConfiguration, false},
		{KindTimeout, SeverityMedium, CategoryTransient, true},
		{KindConfigurationError, SeverityCritical, CategoryConfiguration, false},
		{KindFallbackFailed, SeverityCritical, CategoryPermanent, false},
		{KindContentFilter, SeverityMedium, CategoryPermanent, false},
		{KindAsyncExtraction, SeverityHigh, CategoryExternal, true},
	}

	for _, tt := range tests {
		if got := tt.kind.Severity(); got != tt.severity {
			t.Errorf("%s severity = %s, want %s", tt.kind, got, tt.severity)
		}
		if got := tt.kind.Category(); got != tt.category {
			t.Errorf("%s category = %s, want %s", tt.kind, got, tt.category)
		}
		if got := tt.kind.Retryable(); got != tt.retryable {
			t.Errorf("%s retryable = %v, want %v", tt.kind, got, tt.retryable)
		}
	}
}

func TestKind_UnknownDefaultsMedium(t *testing.T) {
	k := Kind("not_in_taxonomy")
	if k.Severity() != SeverityMedium {
		t.Errorf("unknown kind severity = %s, want medium", k.Severity())
	}
	if k.Valid() {
		t.Error("unknown kind should not be valid")
	}
}

func TestSeverity_AtLeast(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityHigh) {
		t.Error("critical should be at least high")
	}
	if !SeverityHigh.AtLeast(SeverityHigh) {
		t.Error("high should be at least high")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low should not be at least medium")
	}
}

// ============================================================================
// Classification Tests
// ============================================================================

type kindedErr struct{ kind Kind }

func (e *kindedErr) Error() string   { return "kinded" }
func (e *kindedErr) ErrorKind() Kind { return e.kind }

func TestClassify_Kinder(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &kindedErr{kind: KindQuotaExceeded})
	if got := Classify(err); got != KindQuotaExceeded {
		t.Errorf("Classify = %s, want quota_exceeded", got)
	}
}

func TestClassify_ContextErrors(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != KindTimeout {
		t.Errorf("deadline exceeded = %s, want timeout", got)
	}
	if got := Classify(context.Canceled); got != KindTimeout {
		t.Errorf("canceled = %s, want timeout", got)
	}
}

func TestClassify_NetError(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if got := Classify(opErr); got != KindNetworkError {
		t.Errorf("op error = %s, want network_error", got)
	}
}

func TestClassify_MessageSignatures(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"Rate limit reached for gpt-4", KindRateLimitExceeded},
		{"You exceeded your current quota", KindQuotaExceeded},
		{"Incorrect API key provided: invalid api key", KindAuthentication},
		{"The response was filtered due to content policy", KindContentFilter},
		{"The model `gpt-9` model not found", KindModelUnavailable},
		{"This model's maximum context length is 8192 tokens", KindTokenLimitExceeded},
		{"dial tcp: connection refused", KindNetworkError},
		{"upstream is overloaded", KindProviderUnavailable},
		{"something entirely novel", KindUnknown},
	}

	for _, tt := range tests {
		if got := Classify(errors.New(tt.msg)); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	err := errors.New("rate limit reached")
	first := Classify(err)
	for i := 0; i < 10; i++ {
		if got := Classify(err); got != first {
			t.Fatalf("classification not deterministic: %s vs %s", got, first)
		}
	}
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{401, KindAuthentication},
		{403, KindAuthentication},
		{402, KindQuotaExceeded},
		{404, KindModelUnavailable},
		{408, KindTimeout},
		{413, KindTokenLimitExceeded},
		{429, KindRateLimitExceeded},
		{451, KindContentFilter},
		{500, KindServerError},
		{502, KindServerError},
		{503, KindProviderUnavailable},
		{504, KindTimeout},
		{400, KindClientError},
		{418, KindClientError},
		{200, KindUnknown},
	}

	for _, tt := range tests {
		if got := KindForStatus(tt.status); got != tt.want {
			t.Errorf("KindForStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

// ============================================================================
// ErrorRecord Tests
// ============================================================================

func TestNewRecord_FillsTraits(t *testing.T) {
	cause := errors.New("boom")
	rec := NewRecord(KindServerError, "openai", "req-1", 2, cause)

	if rec.ID == "" {
		t.Error("record ID should be set")
	}
	if rec.Severity != SeverityMedium || rec.Category != CategoryTransient {
		t.Errorf("traits not filled: %s/%s", rec.Severity, rec.Category)
	}
	if !rec.Retryable {
		t.Error("server_error should be retryable")
	}
	if rec.Message != "boom" {
		t.Errorf("message = %q, want cause message", rec.Message)
	}
	if !errors.Is(rec, cause) {
		t.Error("record should unwrap to cause")
	}
	if time.Since(rec.Timestamp) > time.Minute {
		t.Error("timestamp not recent")
	}
}

func TestErrorRecord_Equivalent(t *testing.T) {
	cause := errors.New("same failure")
	a := NewRecord(KindTimeout, "openai", "req-1", 1, cause)
	b := NewRecord(KindTimeout, "openai", "req-1", 1, cause)

	if a.ID == b.ID {
		t.Error("records should have distinct IDs")
	}
	if !a.Equivalent(b) {
		t.Error("records from the same failure should be equivalent")
	}

	c := NewRecord(KindTimeout, "anthropic", "req-1", 1, cause)
	if a.Equivalent(c) {
		t.Error("records for different providers should not be equivalent")
	}
}

func TestErrorRecord_ErrorString(t *testing.T) {
	rec := NewRecord(KindRateLimitExceeded, "openai", "req-1", 1, errors.New("429"))
	want := `rate_limit_exceeded (provider "openai"): 429`
	if rec.Error() != want {
		t.Errorf("Error() = %q, want %q", rec.Error(), want)
	}
}
