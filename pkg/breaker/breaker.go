// Package breaker implements the per-provider circuit breaker that gates
// dispatch. The breaker is a three-state machine (closed, open, half-open)
// driven by consecutive failures and the failure rate over a recent-request
// window. State transitions are atomic relative to dispatch decisions.
package breaker

import (
	"fmt"
	"sync"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed allows dispatch.
	StateClosed State = iota
	// StateOpen denies dispatch until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits exactly one probe.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// OpenError is returned by Allow when the circuit denies dispatch.
type OpenError struct {
	// Provider is the provider whose circuit is open.
	Provider string

	// RetryAfter is how long until the circuit will admit a probe.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("provider %q circuit breaker open (retry after %s)",
		e.Provider, e.RetryAfter.Round(time.Millisecond))
}

// ErrorKind implements taxonomy.Kinder.
func (e *OpenError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindCircuitBreakerOpen
}

// Config holds circuit breaker thresholds.
type Config struct {
	// FailureThreshold opens the circuit when consecutive failures reach it.
	FailureThreshold int

	// FailureRateThreshold opens the circuit when the failure rate over the
	// recent-request window reaches it, provided MinimumSamples outcomes
	// have been observed.
	FailureRateThreshold float64

	// MinimumSamples is the minimum number of recorded outcomes before the
	// failure rate is evaluated.
	MinimumSamples int

	// Cooldown is how long the circuit stays open before admitting a probe.
	Cooldown time.Duration

	// WindowSize is the capacity of the recent-outcome ring.
	WindowSize int
}

// DefaultConfig returns the default breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     5,
		FailureRateThreshold: 0.5,
		MinimumSamples:       10,
		Cooldown:             30 * time.Second,
		WindowSize:           20,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = d.FailureRateThreshold
	}
	if c.MinimumSamples <= 0 {
		c.MinimumSamples = d.MinimumSamples
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	return c
}

// StateChangeFunc observes breaker transitions. Called outside the breaker
// lock with the provider name and both states.
type StateChangeFunc func(provider string, from, to State)

// Breaker is the per-provider circuit breaker.
//
// All state transitions happen under one mutex so that dispatch decisions
// observe a consistent state. The recent-outcome ring backs the failure-rate
// evaluation; consecutive failures are tracked separately and reset on any
// success.
type Breaker struct {
	provider string
	cfg      Config

	mu                  sync.Mutex
	state               State
	openedAt            time.Time
	consecutiveFailures int
	probeInFlight       bool

	// ring is the recent-outcome window: true = failure.
	ring      []bool
	ringHead  int
	ringCount int

	// pending holds a transition awaiting notification outside the lock.
	pending pendingTransition

	onStateChange StateChangeFunc
}

// New creates a circuit breaker for the named provider.
func New(provider string, cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		provider: provider,
		cfg:      cfg,
		state:    StateClosed,
		ring:     make([]bool, cfg.WindowSize),
	}
}

// OnStateChange registers a transition observer. Must be called before the
// breaker is shared.
func (b *Breaker) OnStateChange(fn StateChangeFunc) {
	b.onStateChange = fn
}

// Allow decides whether a dispatch may proceed.
//
// Closed: always allowed. Open: denied until the cooldown elapses, at which
// point the circuit transitions to half-open and this call admits the probe.
// Half-open: exactly one probe is admitted; concurrent callers are denied.
//
// When Allow admits a half-open probe the caller must settle it with
// RecordSuccess, RecordFailure, or CancelProbe.
func (b *Breaker) Allow() error {
	b.mu.Lock()

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return nil

	case StateOpen:
		elapsed := time.Since(b.openedAt)
		if elapsed < b.cfg.Cooldown {
			retryAfter := b.cfg.Cooldown - elapsed
			b.mu.Unlock()
			return &OpenError{Provider: b.provider, RetryAfter: retryAfter}
		}
		// Cooldown elapsed: move to half-open and admit this caller as the probe.
		b.transitionLocked(StateHalfOpen)
		b.probeInFlight = true
		fn, from, to := b.pendingNotifyLocked()
		b.mu.Unlock()
		notify(fn, b.provider, from, to)
		return nil

	case StateHalfOpen:
		if b.probeInFlight {
			b.mu.Unlock()
			return &OpenError{Provider: b.provider, RetryAfter: b.cfg.Cooldown}
		}
		b.probeInFlight = true
		b.mu.Unlock()
		return nil
	}

	b.mu.Unlock()
	return nil
}

// RecordSuccess records a successful outcome. In half-open state the probe
// success closes the circuit. Consecutive failures reset to zero.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()

	b.consecutiveFailures = 0
	b.pushOutcomeLocked(false)

	if b.state == StateHalfOpen {
		b.probeInFlight = false
		b.transitionLocked(StateClosed)
	}

	fn, from, to := b.pendingNotifyLocked()
	b.mu.Unlock()
	notify(fn, b.provider, from, to)
}

// RecordFailure records a failed outcome. The circuit opens when consecutive
// failures reach the threshold, when the windowed failure rate reaches its
// threshold, or on any half-open probe failure (cooldown restarts).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()

	b.consecutiveFailures++
	b.pushOutcomeLocked(true)

	switch b.state {
	case StateHalfOpen:
		b.probeInFlight = false
		b.openLocked()

	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold || b.failureRateTrippedLocked() {
			b.openLocked()
		}
	}

	fn, from, to := b.pendingNotifyLocked()
	b.mu.Unlock()
	notify(fn, b.provider, from, to)
}

// Available reports whether a dispatch attempt could currently be
// admitted, without taking the half-open probe slot. An open circuit
// becomes available again once its cooldown elapses, so the next Allow
// can run the recovery probe.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		return time.Since(b.openedAt) >= b.cfg.Cooldown
	case StateHalfOpen:
		return !b.probeInFlight
	}
	return true
}

// CancelProbe releases a half-open probe hold without recording an outcome.
// Used when the request is cancelled before the dispatch completes.
func (b *Breaker) CancelProbe() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
	b.mu.Unlock()
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// Snapshot reports the breaker's state for monitoring.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Provider:            b.provider,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		OpenedAt:            b.openedAt,
		FailureRate:         b.failureRateLocked(),
		Samples:             b.ringCount,
	}
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Provider            string    `json:"provider"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	FailureRate         float64   `json:"failure_rate"`
	Samples             int       `json:"samples"`
}

// openLocked moves the circuit to open and starts the cooldown.
// Caller must hold the lock.
func (b *Breaker) openLocked() {
	b.openedAt = time.Now()
	b.transitionLocked(StateOpen)
}

// pushOutcomeLocked appends an outcome to the recent-request ring.
// Caller must hold the lock.
func (b *Breaker) pushOutcomeLocked(failure bool) {
	b.ring[b.ringHead] = failure
	b.ringHead = (b.ringHead + 1) % len(b.ring)
	if b.ringCount < len(b.ring) {
		b.ringCount++
	}
}

// failureRateLocked computes the failure rate over the recorded window.
// Caller must hold the lock.
func (b *Breaker) failureRateLocked() float64 {
	if b.ringCount == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.ringCount; i++ {
		if b.ring[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.ringCount)
}

// failureRateTrippedLocked reports whether the windowed failure rate trips
// the breaker. Requires the minimum sample count. Caller must hold the lock.
func (b *Breaker) failureRateTrippedLocked() bool {
	if b.ringCount < b.cfg.MinimumSamples {
		return false
	}
	return b.failureRateLocked() >= b.cfg.FailureRateThreshold
}

// pending transition notification, delivered outside the lock.
type pendingTransition struct {
	from, to State
	fire     bool
}

// transitionLocked changes state and remembers the transition for
// notification after the lock is released. Caller must hold the lock.
func (b *Breaker) transitionLocked(to State) {
	if b.state == to {
		return
	}
	b.pending = pendingTransition{from: b.state, to: to, fire: true}
	b.state = to
}

// pendingNotifyLocked consumes the pending transition, returning the callback
// to invoke (nil if none). Caller must hold the lock.
func (b *Breaker) pendingNotifyLocked() (StateChangeFunc, State, State) {
	if !b.pending.fire || b.onStateChange == nil {
		b.pending = pendingTransition{}
		return nil, 0, 0
	}
	p := b.pending
	b.pending = pendingTransition{}
	return b.onStateChange, p.from, p.to
}

func notify(fn StateChangeFunc, provider string, from, to State) {
	if fn != nil {
		fn(provider, from, to)
	}
}
