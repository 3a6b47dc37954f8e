package ratelimit

import (
	"context"
	"fmt"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// DefaultMaxWait is how long Acquire will block for a slot before rejecting.
// Admission is meant to smooth short bursts, not to queue work.
const DefaultMaxWait = 250 * time.Millisecond

// LimitError is returned when admission is refused. It classifies as
// rate_limit_exceeded so the retry orchestrator applies the rate-limit
// backoff policy.
type LimitError struct {
	// Provider is the provider whose limit was hit.
	Provider string

	// Dimension is which limit refused admission ("rpm" or "concurrent").
	Dimension string

	// RetryAfter is a hint for when a slot may be available (0 if unknown).
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q %s limit exceeded (retry after %s)",
			e.Provider, e.Dimension, e.RetryAfter)
	}
	return fmt.Sprintf("provider %q %s limit exceeded", e.Provider, e.Dimension)
}

// ErrorKind implements taxonomy.Kinder.
func (e *LimitError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindRateLimitExceeded
}

// Config holds the per-provider admission limits.
type Config struct {
	// RPM is the maximum request rate in requests per minute. Zero disables
	// the rate dimension.
	RPM int

	// Concurrent is the maximum number of simultaneous in-flight requests.
	// Zero disables the concurrency dimension.
	Concurrent int

	// MaxWait bounds how long Acquire blocks before rejecting.
	// Zero means DefaultMaxWait.
	MaxWait time.Duration
}

// Limiter gates admission to one provider across two dimensions: request
// rate (token bucket over RPM) and concurrency (in-flight cap).
//
// Both dimensions must admit for Acquire to succeed. A successful Acquire
// must be paired with exactly one Release on every exit path.
type Limiter struct {
	provider   string
	rpm        *TokenBucket
	concurrent *ConcurrentLimiter
	maxWait    time.Duration
}

// NewLimiter creates an admission limiter for the named provider.
func NewLimiter(provider string, cfg Config) *Limiter {
	l := &Limiter{
		provider: provider,
		maxWait:  cfg.MaxWait,
	}
	if l.maxWait <= 0 {
		l.maxWait = DefaultMaxWait
	}
	if cfg.RPM > 0 {
		// Burst up to the full minute allowance, refill at the per-second rate.
		l.rpm = NewTokenBucket(int64(cfg.RPM), float64(cfg.RPM)/60.0)
	}
	if cfg.Concurrent > 0 {
		l.concurrent = NewConcurrentLimiter(cfg.Concurrent)
	}
	return l
}

// Acquire obtains one admission slot, blocking up to the bounded wait.
// On success the caller owns a slot and must call Release exactly once.
// On failure no slot is held and a *LimitError is returned.
//
// Acquire is deadline-aware: if ctx expires before a slot is obtained, the
// context error is returned and nothing is held.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	// Concurrency slot first: it is the cheaper check and holding it does
	// not consume rate tokens.
	if l.concurrent != nil {
		if err := l.acquireConcurrent(waitCtx); err != nil {
			return err
		}
	}

	if l.rpm != nil {
		if err := l.acquireRate(waitCtx); err != nil {
			// Give back the concurrency slot; nothing is held on failure.
			if l.concurrent != nil {
				l.concurrent.Release()
			}
			return err
		}
	}

	return nil
}

// acquireConcurrent polls for a concurrency slot until the wait context expires.
func (l *Limiter) acquireConcurrent(ctx context.Context) error {
	const pollInterval = 10 * time.Millisecond

	for {
		if l.concurrent.Acquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err == context.Canceled {
				return err
			}
			return &LimitError{Provider: l.provider, Dimension: "concurrent"}
		case <-time.After(pollInterval):
		}
	}
}

// acquireRate waits for a rate token until the wait context expires.
func (l *Limiter) acquireRate(ctx context.Context) error {
	for {
		if l.rpm.Take(1) {
			return nil
		}

		wait := l.rpm.TimeUntilAvailable(1)
		if wait <= 0 {
			wait = 5 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			if err := ctx.Err(); err == context.Canceled {
				return err
			}
			return &LimitError{
				Provider:   l.provider,
				Dimension:  "rpm",
				RetryAfter: l.rpm.TimeUntilAvailable(1),
			}
		case <-time.After(wait):
		}
	}
}

// Release returns the slot taken by a successful Acquire.
func (l *Limiter) Release() {
	if l.concurrent != nil {
		l.concurrent.Release()
	}
}

// InFlight returns the current number of admitted, unreleased requests.
// Returns 0 if the concurrency dimension is disabled.
func (l *Limiter) InFlight() int64 {
	if l.concurrent == nil {
		return 0
	}
	return l.concurrent.Current()
}

// Snapshot reports the limiter's current admission state.
func (l *Limiter) Snapshot() Snapshot {
	s := Snapshot{Provider: l.provider}
	if l.concurrent != nil {
		s.InFlight = l.concurrent.Current()
		s.ConcurrentLimit = l.concurrent.Limit()
	}
	if l.rpm != nil {
		s.RateRemaining = l.rpm.Remaining()
		s.RateCapacity = l.rpm.Capacity()
	}
	return s
}

// Snapshot is a point-in-time view of a limiter, used by monitoring endpoints.
type Snapshot struct {
	Provider        string `json:"provider"`
	InFlight        int64  `json:"in_flight"`
	ConcurrentLimit int64  `json:"concurrent_limit"`
	RateRemaining   int64  `json:"rate_remaining"`
	RateCapacity    int64  `json:"rate_capacity"`
}
