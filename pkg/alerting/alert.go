package alerting

import (
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Alert is one operational condition worth a human's attention.
type Alert struct {
	// ID is the unique alert instance identifier.
	ID string `json:"id"`

	// Rule names the condition that fired (e.g. "high_error_rate").
	Rule string `json:"rule"`

	// Provider is the provider the alert concerns; empty for gateway-wide
	// conditions.
	Provider string `json:"provider,omitempty"`

	// Severity ranks the alert.
	Severity taxonomy.Severity `json:"severity"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Context carries supporting values (rates, thresholds, counts).
	Context map[string]any `json:"context,omitempty"`

	// FiredAt is when the condition first fired.
	FiredAt time.Time `json:"fired_at"`

	// LastFiredAt is when the condition most recently fired.
	LastFiredAt time.Time `json:"last_fired_at"`

	// ResolvedAt is set when the condition cleared.
	ResolvedAt time.Time `json:"resolved_at,omitempty"`

	// Occurrences counts fires, including suppressed ones.
	Occurrences int `json:"occurrences"`

	// Escalated is true once sustained repetition bumped the severity.
	Escalated bool `json:"escalated"`
}

// Resolved reports whether the alert has been resolved.
func (a *Alert) Resolved() bool {
	return !a.ResolvedAt.IsZero()
}

// key identifies an alert for deduplication.
func (a *Alert) key() alertKey {
	return alertKey{rule: a.Rule, provider: a.Provider}
}

type alertKey struct {
	rule     string
	provider string
}
