package alerting

import (
	"fmt"
	"time"

	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Rule names. Stable strings: they key deduplication and appear in the
// alerts endpoint.
const (
	RuleHighErrorRate       = "high_error_rate"
	RuleConsecutiveFailures = "consecutive_failures"
	RuleLatencyAnomaly      = "latency_anomaly"
	RuleCircuitOpen         = "circuit_open"
	RuleAllProvidersFailed  = "all_providers_failed"
	RuleFallbackServed      = "fallback_served"
)

// Thresholds for the periodic rules.
const (
	// errorRateThreshold fires when the windowed failure rate crosses it.
	errorRateThreshold = 0.5

	// errorRateMinRequests is the minimum window traffic before the error
	// rate rule can fire; low-volume noise is not an incident.
	errorRateMinRequests = 10

	// consecutiveFailureThreshold fires the consecutive-failures rule.
	consecutiveFailureThreshold = 5

	// latencyAnomalyFactor fires when p95 exceeds this multiple of the
	// latency baseline.
	latencyAnomalyFactor = 2.0

	// ruleWindow is the trailing window the periodic rules evaluate.
	ruleWindow = 5 * time.Minute
)

// Evaluator runs the threshold rules against collected metrics. The
// aggregation cron calls Run on its cadence; event-driven rules
// (all_providers_failed, fallback_served) are fired directly by the
// gateway instead.
type Evaluator struct {
	collector *metrics.Collector
	manager   *Manager
	providers func() []string
}

// NewEvaluator creates an evaluator. providers lists the provider names to
// evaluate on each run.
func NewEvaluator(collector *metrics.Collector, manager *Manager, providers func() []string) *Evaluator {
	return &Evaluator{
		collector: collector,
		manager:   manager,
		providers: providers,
	}
}

// Run evaluates every rule for every provider, firing and auto-resolving
// as conditions appear and clear.
func (e *Evaluator) Run() {
	for _, provider := range e.providers() {
		e.evaluateErrorRate(provider)
		e.evaluateConsecutiveFailures(provider)
		e.evaluateLatencyAnomaly(provider)
	}
}

func (e *Evaluator) evaluateErrorRate(provider string) {
	w, ok := e.collector.Window(provider, ruleWindow)
	if !ok || w.Requests < errorRateMinRequests {
		e.manager.Resolve(RuleHighErrorRate, provider)
		return
	}

	errorRate := 1 - w.SuccessRate
	if errorRate >= errorRateThreshold {
		e.manager.Fire(RuleHighErrorRate, provider, taxonomy.SeverityHigh,
			fmt.Sprintf("provider %s error rate %.0f%% over the last %s", provider, errorRate*100, ruleWindow),
			map[string]any{
				"error_rate": errorRate,
				"requests":   w.Requests,
				"threshold":  errorRateThreshold,
			})
		return
	}
	e.manager.Resolve(RuleHighErrorRate, provider)
}

func (e *Evaluator) evaluateConsecutiveFailures(provider string) {
	stats, ok := e.collector.Stats(provider)
	if !ok {
		return
	}

	if stats.ConsecutiveFailures >= consecutiveFailureThreshold {
		e.manager.Fire(RuleConsecutiveFailures, provider, taxonomy.SeverityHigh,
			fmt.Sprintf("provider %s failed %d consecutive requests", provider, stats.ConsecutiveFailures),
			map[string]any{
				"consecutive_failures": stats.ConsecutiveFailures,
				"threshold":            consecutiveFailureThreshold,
			})
		return
	}
	e.manager.Resolve(RuleConsecutiveFailures, provider)
}

func (e *Evaluator) evaluateLatencyAnomaly(provider string) {
	stats, ok := e.collector.Stats(provider)
	if !ok || stats.LatencyBaselineMs <= 0 {
		return
	}

	if stats.P95LatencyMs > stats.LatencyBaselineMs*latencyAnomalyFactor {
		e.manager.Fire(RuleLatencyAnomaly, provider, taxonomy.SeverityMedium,
			fmt.Sprintf("provider %s p95 latency %.0fms is %.1fx its baseline %.0fms",
				provider, stats.P95LatencyMs,
				stats.P95LatencyMs/stats.LatencyBaselineMs, stats.LatencyBaselineMs),
			map[string]any{
				"p95_ms":      stats.P95LatencyMs,
				"baseline_ms": stats.LatencyBaselineMs,
				"factor":      latencyAnomalyFactor,
			})
		return
	}
	e.manager.Resolve(RuleLatencyAnomaly, provider)
}
