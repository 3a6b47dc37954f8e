// Package ratelimit provides per-provider admission control for the gateway.
//
// Each provider gets a Limiter combining a token bucket (requests per minute)
// with a concurrency cap (simultaneous in-flight requests). Acquisition
// blocks for at most a small bounded wait; if a slot cannot be obtained in
// time the request is rejected with a rate-limit error rather than queued.
//
// Releases are the caller's responsibility and must happen on every exit
// path, including panics (use defer immediately after a successful Acquire).
package ratelimit
