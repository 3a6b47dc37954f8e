// Package providers defines the provider abstraction for dream generation
// backends and the shared HTTP plumbing the vendor adapters build on.
//
// A Provider turns a provider-agnostic GenerationRequest into a vendor API
// call and normalizes the result. Adapters live in subpackages (anthropic,
// openai, generic) and embed HTTPClient for connection pooling, timeout
// handling, and status-code classification.
//
// Transport errors carry their taxonomy kind: every typed error in this
// package implements taxonomy.Kinder, so callers classify failures without
// string matching.
//
// Adapters perform no retries. Retry policy, circuit breaking, and rate
// limiting are owned by the orchestration layer above; an adapter makes
// exactly one attempt per call and reports what happened.
package providers
