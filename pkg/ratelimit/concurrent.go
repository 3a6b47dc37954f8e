package ratelimit

import (
	"sync/atomic"
)

// ConcurrentLimiter caps the number of simultaneous in-flight requests to a
// provider. It is a counting semaphore built on atomic operations, so
// admission never takes a lock.
type ConcurrentLimiter struct {
	limit   int64 // Maximum concurrent requests
	current int64 // Current number of in-flight requests
}

// NewConcurrentLimiter creates a limiter allowing up to limit simultaneous
// requests.
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	return &ConcurrentLimiter{limit: int64(limit)}
}

// Acquire attempts to take a concurrency slot. Returns true if acquired.
// A successful Acquire must be paired with exactly one Release.
func (cl *ConcurrentLimiter) Acquire() bool {
	current := atomic.AddInt64(&cl.current, 1)
	if current > cl.limit {
		atomic.AddInt64(&cl.current, -1)
		return false
	}
	return true
}

// Release returns a concurrency slot taken by a successful Acquire.
func (cl *ConcurrentLimiter) Release() {
	atomic.AddInt64(&cl.current, -1)
}

// Current returns the number of in-flight requests.
func (cl *ConcurrentLimiter) Current() int64 {
	return atomic.LoadInt64(&cl.current)
}

// Limit returns the configured concurrency limit.
func (cl *ConcurrentLimiter) Limit() int64 {
	return atomic.LoadInt64(&cl.limit)
}

// Remaining returns the number of free slots.
func (cl *ConcurrentLimiter) Remaining() int64 {
	remaining := atomic.LoadInt64(&cl.limit) - atomic.LoadInt64(&cl.current)
	if remaining < 0 {
		return 0
	}
	return remaining
}
