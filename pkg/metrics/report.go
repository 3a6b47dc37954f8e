package metrics

import (
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// ProviderStats is the realtime view of one provider, consumed by the
// health monitor and the dashboard endpoints.
type ProviderStats struct {
	Provider            string                  `json:"provider"`
	TotalRequests       int64                   `json:"total_requests"`
	TotalFailures       int64                   `json:"total_failures"`
	SuccessRate         float64                 `json:"success_rate"`
	ConsecutiveFailures int                     `json:"consecutive_failures"`
	AvgLatencyMs        float64                 `json:"avg_latency_ms"`
	P50LatencyMs        float64                 `json:"p50_latency_ms"`
	P95LatencyMs        float64                 `json:"p95_latency_ms"`
	LatencyBaselineMs   float64                 `json:"latency_baseline_ms"`
	ErrorRateBaseline   float64                 `json:"error_rate_baseline"`
	LastSuccess         time.Time               `json:"last_success,omitempty"`
	LastFailure         time.Time               `json:"last_failure,omitempty"`
	ErrorBreakdown      map[taxonomy.Kind]int64 `json:"error_breakdown,omitempty"`
}

// WindowStats aggregates a trailing time window for one provider.
type WindowStats struct {
	Requests     int64   `json:"requests"`
	Failures     int64   `json:"failures"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Report is the full dashboard payload.
type Report struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Providers   map[string]ProviderStats `json:"providers"`
	LastHour    map[string]WindowStats   `json:"last_hour"`
}

// statsLocked builds ProviderStats for a series. Callers hold c.mu.
func statsLocked(name string, s *providerSeries) ProviderStats {
	stats := ProviderStats{
		Provider:            name,
		TotalRequests:       s.total,
		TotalFailures:       s.failures,
		SuccessRate:         1,
		ConsecutiveFailures: s.consecutiveFailures,
		P50LatencyMs:        s.latencies.percentile(0.50),
		P95LatencyMs:        s.latencies.percentile(0.95),
		LatencyBaselineMs:   s.latencyBaseline.baseline(),
		ErrorRateBaseline:   s.errorRateBaseline.baseline(),
		LastSuccess:         s.lastSuccess,
		LastFailure:         s.lastFailure,
	}
	if s.total > 0 {
		stats.SuccessRate = float64(s.total-s.failures) / float64(s.total)
		stats.AvgLatencyMs = s.totalLatencyMs / float64(s.total)
	}
	if len(s.errorCounts) > 0 {
		stats.ErrorBreakdown = make(map[taxonomy.Kind]int64, len(s.errorCounts))
		for k, v := range s.errorCounts {
			stats.ErrorBreakdown[k] = v
		}
	}
	return stats
}

// Stats returns the realtime view of one provider.
func (c *Collector) Stats(provider string) (ProviderStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.providers[provider]
	if !ok {
		return ProviderStats{}, false
	}
	return statsLocked(provider, s), true
}

// Window aggregates the trailing duration for one provider from the
// per-minute history.
func (c *Collector) Window(provider string, d time.Duration) (WindowStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.providers[provider]
	if !ok {
		return WindowStats{}, false
	}

	requests, failures, avgLatency := s.minutes.since(time.Now().Add(-d))
	w := WindowStats{
		Requests:     requests,
		Failures:     failures,
		SuccessRate:  1,
		AvgLatencyMs: avgLatency,
	}
	if requests > 0 {
		w.SuccessRate = float64(requests-failures) / float64(requests)
	}
	return w, true
}

// LatencyAnomalous reports whether a latency sample deviates from the
// provider's baseline by more than factor.
func (c *Collector) LatencyAnomalous(provider string, latency time.Duration, factor float64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.providers[provider]
	if !ok {
		return false
	}
	return s.latencyBaseline.anomalous(float64(latency.Milliseconds()), factor)
}

// Report builds the dashboard payload across all providers.
func (c *Collector) Report() *Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	report := &Report{
		GeneratedAt: time.Now(),
		Providers:   make(map[string]ProviderStats, len(c.providers)),
		LastHour:    make(map[string]WindowStats, len(c.providers)),
	}

	cutoff := time.Now().Add(-time.Hour)
	for name, s := range c.providers {
		report.Providers[name] = statsLocked(name, s)

		requests, failures, avgLatency := s.minutes.since(cutoff)
		w := WindowStats{
			Requests:     requests,
			Failures:     failures,
			SuccessRate:  1,
			AvgLatencyMs: avgLatency,
		}
		if requests > 0 {
			w.SuccessRate = float64(requests-failures) / float64(requests)
		}
		report.LastHour[name] = w
	}

	return report
}
