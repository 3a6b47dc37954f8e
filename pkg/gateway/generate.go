package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/providers"
	"oneiro-hq/morpheus/pkg/retry"
	"oneiro-hq/morpheus/pkg/schema"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Confidence penalties. Each repair pass and each extraction salvage step
// discounts the artifact's confidence from the provider's success-rate
// base.
const (
	repairConfidencePenalty     = 0.9
	extractionConfidencePenalty = 0.95
	minConfidence               = 0.1
)

// Request is one dream generation request.
type Request struct {
	// RequestID correlates logs, alerts, and the artifact. Empty means a
	// fresh UUID.
	RequestID string `json:"request_id"`

	// Prompt is the dream text to expand.
	Prompt string `json:"prompt"`

	// Style, when set, steers the rendering of the dream (e.g.
	// "ethereal", "noir").
	Style string `json:"style"`

	// Quality, when set, overrides the quality string stamped into the
	// artifact metadata.
	Quality string `json:"quality"`

	// Schema names the validation target. Empty means the configured
	// default.
	Schema string `json:"schema"`

	// Model overrides the provider's configured model when set.
	Model string `json:"model"`

	// Stream requests streaming transport. The response is still delivered
	// whole; streaming only changes how the provider is read.
	Stream bool `json:"stream"`

	// Temperature and MaxTokens override the gateway defaults when set.
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Generate produces a schema-valid artifact for the request.
//
// Providers are tried best-scored first. Within a provider the retry policy
// for each failure kind decides whether to retry in place, retry with a
// corrective message, or move on. When every provider is exhausted the
// emergency fallback synthesizes a degraded artifact, so the only errors
// callers see are bad requests and fallback synthesis failures.
func (m *Manager) Generate(ctx context.Context, req *Request) (*schema.Artifact, error) {
	if req.Prompt == "" {
		return nil, &RequestError{Field: "prompt", Message: "prompt is required"}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	schemaName := req.Schema
	if schemaName == "" {
		schemaName = m.config.Schema
	}
	target, err := m.deps.Pipeline.Schema(schemaName)
	if err != nil {
		return nil, &RequestError{Field: "schema", Message: fmt.Sprintf("unknown schema %q", schemaName)}
	}

	start := time.Now()
	logger := m.logger.With("request_id", req.RequestID, "schema", schemaName)

	for _, entry := range m.rank() {
		artifact, giveUp := m.tryProvider(ctx, logger, entry, req, target, start)
		if artifact != nil {
			if m.deps.Alerts != nil {
				m.deps.Alerts.Resolve(alerting.RuleAllProvidersFailed, "")
			}
			return artifact, nil
		}
		if giveUp {
			break
		}
	}

	return m.serveFallback(logger, req, schemaName, start)
}

// tryProvider runs the attempt loop against one provider. It returns the
// artifact on success; giveUp true means stop walking providers entirely.
func (m *Manager) tryProvider(ctx context.Context, logger *slog.Logger, e *Managed, req *Request, target schema.Schema, start time.Time) (*schema.Artifact, bool) {
	name := e.Config.Name
	genReq := m.buildRequest(e, req, target)
	attempts := make(map[taxonomy.Kind]int)

	for {
		if ctx.Err() != nil {
			return nil, true
		}

		result, elapsed, err := m.invoke(ctx, e, genReq, req.Stream)
		if err != nil {
			kind := taxonomy.Classify(err)
			attempts[kind]++
			logger.Warn("attempt failed",
				"provider", name,
				"kind", string(kind),
				"attempt", attempts[kind],
				"error", err,
			)
			// A denial by our own breaker is a routing event, not a
			// provider outcome; recording it would poison the provider's
			// success rate with failures the provider never saw.
			if kind != taxonomy.KindCircuitBreakerOpen {
				m.recordFailure(name, genReq.Model, kind, elapsed)
			}

			decision := m.deps.Retry.Decide(kind, attempts[kind], retryAfterOf(err))
			switch decision.Action {
			case retry.ActionGiveUp:
				return nil, true
			case retry.ActionMoveToNextProvider:
				return nil, false
			case retry.ActionRepairAndRetry:
				// Nothing extractable survived, so there is nothing to
				// repair; restate the contract and tighten the request.
				genReq.Messages = append(genReq.Messages, retry.CorrectiveMessage(nil, target.Describe()))
				retry.TuneForRetry(genReq, e.Config.MaxOutputTokens)
			}
			if !m.pause(ctx, decision.Delay) {
				return nil, true
			}
			continue
		}

		artifact, verrs := m.finish(logger, e, req, target, result, start, elapsed)
		if artifact != nil {
			return artifact, false
		}

		// Validation failed and repair could not recover it. Ask the
		// provider again with the violations spelled out.
		kind := taxonomy.KindValidationFailed
		attempts[kind]++
		decision := m.deps.Retry.Decide(kind, attempts[kind], 0)
		switch decision.Action {
		case retry.ActionGiveUp:
			return nil, true
		case retry.ActionMoveToNextProvider:
			return nil, false
		}
		genReq.Messages = append(genReq.Messages, retry.CorrectiveMessage(verrs, target.Describe()))
		retry.TuneForRetry(genReq, e.Config.MaxOutputTokens)
		if !m.pause(ctx, decision.Delay) {
			return nil, true
		}
	}
}

// finish validates, repairs if needed, and assembles the artifact. A nil
// artifact means unrecoverable validation failure; the returned errors are
// the blocking violations for the corrective retry.
func (m *Manager) finish(logger *slog.Logger, e *Managed, req *Request, target schema.Schema, a *attempt, start time.Time, elapsed time.Duration) (*schema.Artifact, []schema.ValidationError) {
	name := e.Config.Name
	model := req.Model
	if model == "" {
		model = e.Config.Model
	}

	candidate := a.candidate
	m.stamp(candidate, name, model, req.Quality, a.response, start, 0)

	result, err := m.deps.Pipeline.Validate(target.Name(), candidate)
	if err != nil {
		logger.Error("validation pipeline error", "provider", name, "error", err)
		m.recordFailure(name, model, taxonomy.KindValidationFailed, elapsed)
		return nil, nil
	}

	repairPasses := 0
	if !result.Valid {
		outcome, repairErr := m.deps.Pipeline.Repair(target.Name(), candidate, result.Errors)
		if repairErr != nil || !outcome.Success {
			logger.Warn("repair could not recover candidate",
				"provider", name,
				"violations", len(result.Errors),
			)
			m.recordFailure(name, model, taxonomy.KindValidationFailed, elapsed)
			return nil, result.Errors
		}
		candidate = outcome.Repaired
		repairPasses = outcome.Attempts
		logger.Info("candidate repaired",
			"provider", name,
			"passes", outcome.Attempts,
			"fixed_fields", outcome.FixedFields,
		)
	}

	confidence := m.confidence(name, repairPasses, len(a.notes))
	m.stamp(candidate, name, model, req.Quality, a.response, start, confidence)

	tokens := 0
	if a.response != nil {
		tokens = a.response.Usage.TotalTokens
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.Record(metrics.Outcome{
			Provider: name,
			Model:    model,
			Latency:  elapsed,
			Tokens:   tokens,
			Repaired: repairPasses > 0,
		})
	}

	return &schema.Artifact{
		Content:          candidate,
		Schema:           target.Name(),
		Source:           name,
		Confidence:       confidence,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		RepairApplied:    repairPasses > 0,
		ExtractionNotes:  a.notes,
	}, nil
}

// serveFallback synthesizes the degraded artifact after provider
// exhaustion.
func (m *Manager) serveFallback(logger *slog.Logger, req *Request, schemaName string, start time.Time) (*schema.Artifact, error) {
	logger.Error("all providers exhausted, serving emergency fallback")

	if m.deps.Alerts != nil {
		m.deps.Alerts.Fire(alerting.RuleAllProvidersFailed, "", taxonomy.SeverityCritical,
			"every provider failed for request "+req.RequestID, map[string]any{
				"request_id": req.RequestID,
				"schema":     schemaName,
			})
	}

	artifact, err := m.deps.Fallback.Synthesize(req.RequestID, schemaName, req.Prompt)
	if err != nil {
		return nil, err
	}
	artifact.ProcessingTimeMs = time.Since(start).Milliseconds()

	if m.deps.Alerts != nil {
		m.deps.Alerts.Fire(alerting.RuleFallbackServed, "", taxonomy.SeverityHigh,
			"emergency fallback served request "+req.RequestID, map[string]any{
				"request_id": req.RequestID,
			})
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.Record(metrics.Outcome{
			Provider: schema.SourceEmergencyFallback,
			Model:    "emergency-fallback",
			Latency:  time.Since(start),
			Fallback: true,
		})
	}
	return artifact, nil
}

// buildRequest assembles the provider request for one dream prompt.
func (m *Manager) buildRequest(e *Managed, req *Request, target schema.Schema) *providers.GenerationRequest {
	model := req.Model
	if model == "" {
		model = e.Config.Model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = m.config.DefaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.config.DefaultMaxTokens
	}
	if e.Config.MaxOutputTokens > 0 && maxTokens > e.Config.MaxOutputTokens {
		maxTokens = e.Config.MaxOutputTokens
	}

	prompt := req.Prompt
	if req.Style != "" {
		prompt += "\n\nStyle: " + req.Style
	}

	return &providers.GenerationRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: systemPrompt(target)},
			{Role: providers.RoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      req.Stream,
		RequestID:   req.RequestID,
	}
}

// systemPrompt states the output contract for the schema.
func systemPrompt(target schema.Schema) string {
	return "You expand dream descriptions into rich, structured dream content. " +
		"Respond with a single JSON object and nothing else. " + target.Describe()
}

// stamp writes the generation metadata into the candidate before
// validation, so provider output missing its envelope still validates.
// Existing values set by the provider are preserved.
func (m *Manager) stamp(candidate map[string]any, provider, model, quality string, resp *providers.GenerationResponse, start time.Time, confidence float64) {
	meta, ok := candidate["metadata"].(map[string]any)
	if !ok {
		meta = make(map[string]any)
		candidate["metadata"] = meta
	}

	meta["source"] = provider
	if resp != nil && resp.Model != "" {
		meta["model"] = resp.Model
	} else if _, ok := meta["model"]; !ok {
		meta["model"] = model
	}
	if quality != "" {
		meta["quality"] = quality
	} else if _, ok := meta["quality"]; !ok {
		meta["quality"] = "standard"
	}
	meta["processingTimeMs"] = float64(time.Since(start).Milliseconds())
	if _, ok := meta["cacheHit"]; !ok {
		meta["cacheHit"] = false
	}
	meta["confidence"] = confidence
}

// confidence computes the artifact confidence: the provider's observed
// success rate, discounted per repair pass and per extraction salvage
// step, floored at the fallback's level.
func (m *Manager) confidence(provider string, repairPasses, salvageSteps int) float64 {
	base := 1.0
	if m.deps.Metrics != nil {
		if stats, ok := m.deps.Metrics.Stats(provider); ok && stats.TotalRequests > 0 {
			base = stats.SuccessRate
		}
	}

	c := base
	for i := 0; i < repairPasses; i++ {
		c *= repairConfidencePenalty
	}
	for i := 0; i < salvageSteps; i++ {
		c *= extractionConfidencePenalty
	}

	if c < minConfidence {
		c = minConfidence
	}
	if c > 1 {
		c = 1
	}
	return c
}

// recordFailure submits a failed attempt outcome.
func (m *Manager) recordFailure(provider, model string, kind taxonomy.Kind, elapsed time.Duration) {
	if m.deps.Metrics == nil {
		return
	}
	m.deps.Metrics.Record(metrics.Outcome{
		Provider: provider,
		Model:    model,
		Kind:     kind,
		Latency:  elapsed,
	})
}

// pause sleeps for the decided delay, honoring cancellation. It reports
// false when the context ended first.
func (m *Manager) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RequestError reports a request the gateway cannot serve as asked.
type RequestError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// ErrorKind implements taxonomy classification.
func (e *RequestError) ErrorKind() taxonomy.Kind {
	return taxonomy.KindClientError
}
