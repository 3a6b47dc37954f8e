package providers

import "context"

// Provider is the interface all dream generation backends implement.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return immediately
// when the context is cancelled.
//
// A Provider makes exactly one attempt per call. It never retries, sleeps,
// or falls back internally; recovery policy belongs to the gateway.
type Provider interface {
	// Generate sends one generation request to the backend and returns the
	// normalized response. The returned error, when non-nil, is one of the
	// typed errors in this package and carries its taxonomy kind.
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error)

	// Stream sends a streaming generation request. It returns a channel
	// that yields incremental chunks as they arrive. The caller must drain
	// the channel until it closes; a mid-stream failure is delivered as a
	// final chunk with Error set.
	Stream(ctx context.Context, req *GenerationRequest) (<-chan *StreamChunk, error)

	// Probe performs a lightweight reachability check against the backend.
	// It returns nil when the backend responds, or a typed error describing
	// the failure. The health monitor calls this on its active cadence.
	Probe(ctx context.Context) error

	// Name returns the provider instance name (e.g. "openai-primary").
	Name() string

	// Type returns the adapter type (openai, anthropic, generic).
	Type() string

	// Config returns the provider's configuration.
	Config() Config

	// Close releases HTTP connections. The provider must not be used after.
	Close() error
}

// StreamReader abstracts the SSE protocol a streaming adapter reads.
type StreamReader interface {
	// Read returns the next chunk, nil and io.EOF at normal end of stream,
	// or nil and an error on failure.
	Read(ctx context.Context) (*StreamChunk, error)

	// Close closes the stream and releases resources.
	Close() error
}
