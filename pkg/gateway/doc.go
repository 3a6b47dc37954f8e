// Package gateway orchestrates dream generation across providers.
//
// The Manager owns one managed entry per configured provider: the adapter,
// its circuit breaker, and its rate limiter. For each request it scores the
// healthy candidates, walks them in order, and runs the attempt loop:
// admission, circuit check, dispatch, extraction, validation, repair, and
// the retry policy for whatever failed. When every provider is exhausted
// the emergency fallback synthesizes a degraded artifact so the caller
// still receives schema-valid content.
//
// Every attempt outcome feeds the circuit breaker and the metrics
// collector; terminal conditions fire alerts.
package gateway
