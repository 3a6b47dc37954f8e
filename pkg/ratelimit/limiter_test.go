package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// ============================================================================
// Token Bucket Tests
// ============================================================================

func TestTokenBucket_Basic(t *testing.T) {
	bucket := NewTokenBucket(10, 10) // 10 capacity, 10 tokens/sec

	if !bucket.Take(5) {
		t.Error("Expected to take 5 tokens from full bucket")
	}
	if remaining := bucket.Remaining(); remaining != 5 {
		t.Errorf("Expected 5 remaining, got %d", remaining)
	}
	if !bucket.Take(5) {
		t.Error("Expected to take remaining 5 tokens")
	}
	if bucket.Take(1) {
		t.Error("Expected bucket to be empty")
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	bucket := NewTokenBucket(10, 10)

	bucket.Take(10)
	if bucket.Remaining() != 0 {
		t.Error("Expected bucket to be empty")
	}

	// 150ms at 10/sec refills at least 1 token
	time.Sleep(150 * time.Millisecond)

	if !bucket.Take(1) {
		t.Error("Expected bucket to have refilled")
	}
}

func TestTokenBucket_TimeUntilAvailable(t *testing.T) {
	bucket := NewTokenBucket(10, 10)
	bucket.Take(10)

	wait := bucket.TimeUntilAvailable(1)
	if wait <= 0 {
		t.Error("Expected positive wait for empty bucket")
	}
	if wait > 200*time.Millisecond {
		t.Errorf("Expected wait around 100ms at 10/sec, got %s", wait)
	}
}

// ============================================================================
// Concurrent Limiter Tests
// ============================================================================

func TestConcurrentLimiter_Basic(t *testing.T) {
	limiter := NewConcurrentLimiter(2)

	if !limiter.Acquire() {
		t.Error("First acquire should succeed")
	}
	if !limiter.Acquire() {
		t.Error("Second acquire should succeed")
	}
	if limiter.Acquire() {
		t.Error("Third acquire should fail at limit 2")
	}

	limiter.Release()
	if !limiter.Acquire() {
		t.Error("Acquire after release should succeed")
	}
}

func TestConcurrentLimiter_NeverExceedsLimit(t *testing.T) {
	const limit = 5
	limiter := NewConcurrentLimiter(limit)

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxSeen := int64(0)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Acquire() {
				defer limiter.Release()
				current := limiter.Current()
				mu.Lock()
				if current > maxSeen {
					maxSeen = current
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if maxSeen > limit {
		t.Errorf("In-flight count %d exceeded limit %d", maxSeen, limit)
	}
	if limiter.Current() != 0 {
		t.Errorf("Expected zero in-flight after all releases, got %d", limiter.Current())
	}
}

// ============================================================================
// Provider Limiter Tests
// ============================================================================

func TestLimiter_AcquireRelease(t *testing.T) {
	limiter := NewLimiter("openai", Config{RPM: 600, Concurrent: 2})

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	if limiter.InFlight() != 1 {
		t.Errorf("Expected 1 in-flight, got %d", limiter.InFlight())
	}

	limiter.Release()
	if limiter.InFlight() != 0 {
		t.Errorf("Expected 0 in-flight after release, got %d", limiter.InFlight())
	}
}

func TestLimiter_ConcurrentRejection(t *testing.T) {
	limiter := NewLimiter("openai", Config{
		Concurrent: 1,
		MaxWait:    50 * time.Millisecond,
	})

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	defer limiter.Release()

	err := limiter.Acquire(ctx)
	if err == nil {
		t.Fatal("Second acquire should be rejected at concurrency 1")
	}

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Expected *LimitError, got %T", err)
	}
	if limitErr.Dimension != "concurrent" {
		t.Errorf("Expected concurrent dimension, got %s", limitErr.Dimension)
	}
	if taxonomy.Classify(err) != taxonomy.KindRateLimitExceeded {
		t.Errorf("LimitError should classify as rate_limit_exceeded")
	}
}

func TestLimiter_RateRejectionNoSlotHeld(t *testing.T) {
	// RPM 60 = 1 token/sec; bucket starts with 60 tokens, so drain it first.
	limiter := NewLimiter("openai", Config{
		RPM:        60,
		Concurrent: 10,
		MaxWait:    30 * time.Millisecond,
	})

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		limiter.Release()
	}

	err := limiter.Acquire(ctx)
	if err == nil {
		t.Fatal("Acquire should be rejected with drained bucket")
	}
	if limiter.InFlight() != 0 {
		t.Errorf("Rejected acquire must not hold a slot, in-flight = %d", limiter.InFlight())
	}
}

func TestLimiter_CancelledContext(t *testing.T) {
	limiter := NewLimiter("openai", Config{Concurrent: 1, MaxWait: time.Second})

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	defer limiter.Release()

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Acquire(cancelCtx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if limiter.InFlight() != 1 {
		t.Errorf("Cancelled acquire must not hold a slot, in-flight = %d", limiter.InFlight())
	}
}

func TestLimiter_Snapshot(t *testing.T) {
	limiter := NewLimiter("anthropic", Config{RPM: 120, Concurrent: 4})

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	snap := limiter.Snapshot()
	if snap.Provider != "anthropic" {
		t.Errorf("Snapshot provider = %q", snap.Provider)
	}
	if snap.InFlight != 1 {
		t.Errorf("Snapshot in-flight = %d, want 1", snap.InFlight)
	}
	if snap.ConcurrentLimit != 4 {
		t.Errorf("Snapshot concurrent limit = %d, want 4", snap.ConcurrentLimit)
	}
}
