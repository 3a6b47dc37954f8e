package taxonomy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorRecord is the structured form of a classified failure. Components past
// the classification point exchange ErrorRecord values, never raw errors.
type ErrorRecord struct {
	// ID uniquely identifies this record.
	ID string `json:"id"`

	// Kind is the taxonomy kind.
	Kind Kind `json:"kind"`

	// Severity is the fixed severity for the kind.
	Severity Severity `json:"severity"`

	// Category is the fixed category for the kind.
	Category Category `json:"category"`

	// Retryable reports whether same-provider retry may recover this error.
	Retryable bool `json:"retryable"`

	// Provider is the provider the failure is attributed to (empty if none).
	Provider string `json:"provider,omitempty"`

	// RequestID identifies the request being processed when the failure occurred.
	RequestID string `json:"request_id"`

	// Attempt is the 1-based attempt number within the request.
	Attempt int `json:"attempt"`

	// Timestamp is when the record was created.
	Timestamp time.Time `json:"timestamp"`

	// Message is a sanitized, wire-safe description.
	Message string `json:"message"`

	// Context carries additional key-value detail for logs and alerts.
	Context map[string]string `json:"context,omitempty"`

	// Cause is the underlying error. It is logged but never serialized.
	Cause error `json:"-"`
}

// NewRecord builds an ErrorRecord for the given kind with traits filled in
// from the taxonomy.
func NewRecord(kind Kind, provider, requestID string, attempt int, cause error) *ErrorRecord {
	msg := string(kind)
	if cause != nil {
		msg = cause.Error()
	}
	return &ErrorRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  kind.Severity(),
		Category:  kind.Category(),
		Retryable: kind.Retryable(),
		Provider:  provider,
		RequestID: requestID,
		Attempt:   attempt,
		Timestamp: time.Now(),
		Message:   msg,
		Cause:     cause,
	}
}

// WithContext attaches a key-value pair to the record and returns it.
func (r *ErrorRecord) WithContext(key, value string) *ErrorRecord {
	if r.Context == nil {
		r.Context = make(map[string]string)
	}
	r.Context[key] = value
	return r
}

// Error implements the error interface so records can flow through error
// returns at package boundaries.
func (r *ErrorRecord) Error() string {
	if r.Provider != "" {
		return fmt.Sprintf("%s (provider %q): %s", r.Kind, r.Provider, r.Message)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (r *ErrorRecord) Unwrap() error {
	return r.Cause
}

// Equivalent reports whether two records describe the same failure, ignoring
// the per-record ID and timestamp. Classifying the same raw error twice must
// yield equivalent records.
func (r *ErrorRecord) Equivalent(other *ErrorRecord) bool {
	if other == nil {
		return false
	}
	return r.Kind == other.Kind &&
		r.Severity == other.Severity &&
		r.Category == other.Category &&
		r.Retryable == other.Retryable &&
		r.Provider == other.Provider &&
		r.RequestID == other.RequestID &&
		r.Attempt == other.Attempt &&
		r.Message == other.Message
}
