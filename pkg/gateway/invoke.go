package gateway

import (
	"context"
	"errors"
	"time"

	"oneiro-hq/morpheus/pkg/breaker"
	"oneiro-hq/morpheus/pkg/providers"
	"oneiro-hq/morpheus/pkg/ratelimit"
)

// attempt is the product of one successful provider attempt: the extracted
// candidate and what it took to get it.
type attempt struct {
	candidate map[string]any
	notes     []string
	response  *providers.GenerationResponse
}

// invoke runs one guarded attempt: admission, circuit check, dispatch,
// extraction. The breaker sees transport and extraction outcomes; whether
// the content validates is the caller's concern, not an availability
// signal.
//
// The returned duration covers dispatch only; it is zero when admission or
// the circuit denied the attempt.
func (m *Manager) invoke(ctx context.Context, e *Managed, req *providers.GenerationRequest, stream bool) (*attempt, time.Duration, error) {
	if err := e.Limiter.Acquire(ctx); err != nil {
		return nil, 0, err
	}
	defer e.Limiter.Release()

	if err := e.Breaker.Allow(); err != nil {
		return nil, 0, err
	}

	start := time.Now()
	raw, resp, err := m.dispatch(ctx, e, req, stream)
	elapsed := time.Since(start)
	if err != nil {
		// A cancelled caller says nothing about provider health.
		if errors.Is(err, context.Canceled) {
			e.Breaker.CancelProbe()
		} else {
			e.Breaker.RecordFailure()
		}
		return nil, elapsed, err
	}

	extraction, err := m.deps.Extractor.Extract(e.Config.Name, raw)
	if err != nil {
		// The provider answered, but with a payload we cannot use. That is
		// still the provider's failure.
		e.Breaker.RecordFailure()
		return nil, elapsed, err
	}

	e.Breaker.RecordSuccess()
	return &attempt{
		candidate: extraction.Candidate,
		notes:     extraction.Notes,
		response:  resp,
	}, elapsed, nil
}

// dispatch performs the transport call. Streaming responses are aggregated
// into the full text before extraction; the response is nil in that case
// because usage arrives per-chunk and is not re-assembled here.
func (m *Manager) dispatch(ctx context.Context, e *Managed, req *providers.GenerationRequest, stream bool) (any, *providers.GenerationResponse, error) {
	if stream {
		chunks, err := e.Provider.Stream(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		text, err := m.deps.Extractor.AggregateStream(ctx, e.Config.Name, chunks)
		if err != nil {
			return nil, nil, err
		}
		return text, nil, nil
	}

	resp, err := e.Provider.Generate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return resp.Content, resp, nil
}

// retryAfterOf pulls a provider- or guard-requested wait out of an error
// chain, or zero when none was requested.
func retryAfterOf(err error) time.Duration {
	var rateLimited *providers.RateLimitError
	if errors.As(err, &rateLimited) {
		return rateLimited.RetryAfter
	}
	var limited *ratelimit.LimitError
	if errors.As(err, &limited) {
		return limited.RetryAfter
	}
	var open *breaker.OpenError
	if errors.As(err, &open) {
		return open.RetryAfter
	}
	return 0
}
