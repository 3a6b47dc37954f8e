package retry

import (
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Action is what the orchestrator tells the gateway to do next.
type Action string

// Actions, in decreasing order of persistence with the current provider.
const (
	// ActionRetry repeats the request on the same provider after a delay.
	ActionRetry Action = "retry"

	// ActionRepairAndRetry runs the repair pipeline on the failed response
	// and, if repair cannot produce a valid artifact, retries the provider
	// with a corrective prompt.
	ActionRepairAndRetry Action = "repair_and_retry"

	// ActionMoveToNextProvider abandons the current provider for this
	// request and tries the next candidate.
	ActionMoveToNextProvider Action = "move_to_next_provider"

	// ActionGiveUp stops provider attempts entirely; only the emergency
	// fallback remains.
	ActionGiveUp Action = "give_up"
)

// Policy fixes the recovery behavior for one error kind.
type Policy struct {
	// Action is the primary recovery strategy.
	Action Action

	// MaxRetries bounds same-provider attempts before escalating to
	// ActionMoveToNextProvider. Zero means no same-provider retry.
	MaxRetries int

	// BaseDelay is the first backoff delay.
	BaseDelay time.Duration

	// Multiplier grows the delay per attempt.
	Multiplier float64

	// MaxDelay caps the grown delay before jitter.
	MaxDelay time.Duration
}

// generalMaxDelay caps backoff for every kind except rate limiting, which
// gets a longer leash because provider windows reset on minute boundaries.
const (
	generalMaxDelay   = 30 * time.Second
	rateLimitMaxDelay = 60 * time.Second
)

// policies is the per-kind recovery table.
var policies = map[taxonomy.Kind]Policy{
	taxonomy.KindRateLimitExceeded: {
		Action:     ActionRetry,
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Multiplier: 3.0,
		MaxDelay:   rateLimitMaxDelay,
	},
	taxonomy.KindTimeout: {
		Action:     ActionRetry,
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 1.5,
		MaxDelay:   generalMaxDelay,
	},
	taxonomy.KindNetworkError: {
		Action:     ActionRetry,
		MaxRetries: 4,
		BaseDelay:  time.Second,
		Multiplier: 1.8,
		MaxDelay:   generalMaxDelay,
	},
	taxonomy.KindServerError: {
		Action:     ActionRetry,
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		MaxDelay:   generalMaxDelay,
	},
	taxonomy.KindProviderUnavailable: {
		Action:     ActionRetry,
		MaxRetries: 2,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		MaxDelay:   generalMaxDelay,
	},
	taxonomy.KindStreamingError: {
		Action:     ActionRetry,
		MaxRetries: 2,
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		MaxDelay:   generalMaxDelay,
	},

	// Repair kinds re-dispatch immediately: the provider is healthy, its
	// output was malformed, so waiting buys nothing.
	taxonomy.KindValidationFailed: {
		Action:     ActionRepairAndRetry,
		MaxRetries: 3,
	},
	taxonomy.KindParsingError: {
		Action:     ActionRepairAndRetry,
		MaxRetries: 2,
	},
	taxonomy.KindInvalidResponse: {
		Action:     ActionRepairAndRetry,
		MaxRetries: 2,
	},
	taxonomy.KindAsyncExtraction: {
		Action:     ActionRetry,
		MaxRetries: 1,
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   generalMaxDelay,
	},

	taxonomy.KindAuthentication:     {Action: ActionMoveToNextProvider},
	taxonomy.KindQuotaExceeded:      {Action: ActionMoveToNextProvider},
	taxonomy.KindCircuitBreakerOpen: {Action: ActionMoveToNextProvider},
	taxonomy.KindContentFilter:      {Action: ActionMoveToNextProvider},
	taxonomy.KindModelUnavailable:   {Action: ActionMoveToNextProvider},
	taxonomy.KindTokenLimitExceeded: {Action: ActionMoveToNextProvider},
	taxonomy.KindClientError:        {Action: ActionMoveToNextProvider},
	taxonomy.KindResourceExhausted:  {Action: ActionMoveToNextProvider},

	taxonomy.KindConfigurationError: {Action: ActionGiveUp},
}

// fallbackPolicy handles kinds outside the table: one cautious retry, then
// move on.
var fallbackPolicy = Policy{
	Action:     ActionRetry,
	MaxRetries: 1,
	BaseDelay:  time.Second,
	Multiplier: 2.0,
	MaxDelay:   generalMaxDelay,
}

// PolicyFor returns the policy for an error kind.
func PolicyFor(kind taxonomy.Kind) Policy {
	if p, ok := policies[kind]; ok {
		return p
	}
	return fallbackPolicy
}
