package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prom holds the Prometheus instruments the collector drives.
//
// Metrics (namespace_subsystem prefix applied from config):
//   - requests_total: completed generation attempts by provider, model, status
//   - request_duration_seconds: generation latency histogram
//   - errors_total: failures by provider and taxonomy kind
//   - tokens_total: tokens consumed by provider and model
//   - provider_healthy: per-provider health gauge (1 healthy, 0 unhealthy)
//   - circuit_state: per-provider breaker state (0 closed, 1 open, 2 half-open)
//   - promise_detections_total: deferred values refused during extraction
//   - repairs_total: artifacts that passed validation only after repair
//   - fallback_total: emergency fallback artifacts served
//   - dropped_outcomes_total: outcomes dropped because the intake was full
type Prom struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	tokensTotal       *prometheus.CounterVec
	providerHealthy   *prometheus.GaugeVec
	circuitState      *prometheus.GaugeVec
	promiseDetections *prometheus.CounterVec
	repairsTotal      *prometheus.CounterVec
	fallbackTotal     prometheus.Counter
	droppedOutcomes   prometheus.Counter
}

// NewProm creates and registers the instruments with the given registry.
func NewProm(cfg Config, registry *prometheus.Registry) *Prom {
	p := &Prom{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total completed generation attempts",
			},
			[]string{"provider", "model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Generation latency",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"provider", "model"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "errors_total",
				Help:      "Total generation failures by taxonomy kind",
			},
			[]string{"provider", "kind"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tokens_total",
				Help:      "Total tokens consumed",
			},
			[]string{"provider", "model"},
		),

		providerHealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_healthy",
				Help:      "Provider health (1 healthy, 0 unhealthy)",
			},
			[]string{"provider"},
		),

		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"provider"},
		),

		promiseDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "promise_detections_total",
				Help:      "Deferred values refused during extraction",
			},
			[]string{"provider"},
		),

		repairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "repairs_total",
				Help:      "Artifacts valid only after repair",
			},
			[]string{"provider"},
		),

		fallbackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fallback_total",
				Help:      "Emergency fallback artifacts served",
			},
		),

		droppedOutcomes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dropped_outcomes_total",
				Help:      "Outcomes dropped because the intake channel was full",
			},
		),
	}

	registry.MustRegister(
		p.requestsTotal,
		p.requestDuration,
		p.errorsTotal,
		p.tokensTotal,
		p.providerHealthy,
		p.circuitState,
		p.promiseDetections,
		p.repairsTotal,
		p.fallbackTotal,
		p.droppedOutcomes,
	)

	return p
}
