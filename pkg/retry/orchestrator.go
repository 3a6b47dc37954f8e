package retry

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// jitterFraction spreads delays ±10% so synchronized clients do not retry
// in lockstep.
const jitterFraction = 0.10

// Decision is the orchestrator's verdict for one failed attempt.
type Decision struct {
	// Action is what to do next.
	Action Action

	// Delay is how long to wait before acting. Zero for non-retry actions.
	Delay time.Duration
}

// Orchestrator turns error kinds and attempt counts into recovery decisions.
type Orchestrator struct {
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an orchestrator.
func New() *Orchestrator {
	return &Orchestrator{
		logger: slog.Default().With("component", "retry"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Decide returns the recovery decision for a failure of the given kind.
//
// attempt is the number of same-provider attempts already made for this
// kind (1 after the first failure). retryAfter, when positive, is the wait
// the provider itself requested and overrides the computed backoff.
//
// When a retrying policy exhausts MaxRetries the decision escalates to
// ActionMoveToNextProvider; ActionGiveUp is terminal regardless of attempt.
func (o *Orchestrator) Decide(kind taxonomy.Kind, attempt int, retryAfter time.Duration) Decision {
	policy := PolicyFor(kind)

	switch policy.Action {
	case ActionGiveUp:
		return Decision{Action: ActionGiveUp}

	case ActionMoveToNextProvider:
		return Decision{Action: ActionMoveToNextProvider}
	}

	if attempt > policy.MaxRetries {
		o.logger.Debug("retries exhausted, moving on",
			"kind", string(kind),
			"attempt", attempt,
			"max_retries", policy.MaxRetries,
		)
		return Decision{Action: ActionMoveToNextProvider}
	}

	delay := o.backoff(policy, attempt)
	if retryAfter > 0 {
		delay = retryAfter
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return Decision{Action: policy.Action, Delay: delay}
}

// backoff computes the jittered exponential delay for the given attempt.
func (o *Orchestrator) backoff(policy Policy, attempt int) time.Duration {
	delay := float64(policy.BaseDelay) * math.Pow(policy.Multiplier, float64(attempt-1))
	if capped := float64(policy.MaxDelay); delay > capped {
		delay = capped
	}

	o.mu.Lock()
	factor := 1 - jitterFraction + 2*jitterFraction*o.rng.Float64()
	o.mu.Unlock()

	return time.Duration(delay * factor)
}
