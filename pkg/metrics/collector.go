package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Config tunes the collector.
type Config struct {
	// Namespace and Subsystem prefix the Prometheus metric names.
	Namespace string
	Subsystem string

	// IntakeBuffer is the outcome channel capacity.
	IntakeBuffer int

	// EWMAAlpha is the smoothing factor for baselines.
	EWMAAlpha float64

	// DurationBuckets are the latency histogram buckets in seconds.
	DurationBuckets []float64
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "oneiro"
	}
	if c.Subsystem == "" {
		c.Subsystem = "morpheus"
	}
	if c.IntakeBuffer <= 0 {
		c.IntakeBuffer = 4096
	}
	if c.EWMAAlpha <= 0 || c.EWMAAlpha >= 1 {
		c.EWMAAlpha = 0.2
	}
	if len(c.DurationBuckets) == 0 {
		// Tuned for LLM generation latencies (100ms - 60s).
		c.DurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	}
	return c
}

// Outcome is one completed generation attempt.
type Outcome struct {
	// Provider is the provider that served (or failed) the attempt.
	Provider string

	// Model is the model used.
	Model string

	// Kind is the failure kind; empty for success.
	Kind taxonomy.Kind

	// Latency is the attempt duration.
	Latency time.Duration

	// Tokens is the total token count reported by the provider.
	Tokens int

	// Repaired is true when the artifact needed repair to validate.
	Repaired bool

	// Fallback is true when the emergency fallback served the request.
	Fallback bool

	// At is when the attempt finished. Zero means now.
	At time.Time
}

// providerSeries is the realtime and historical state for one provider.
type providerSeries struct {
	total               int64
	failures            int64
	consecutiveFailures int
	lastSuccess         time.Time
	lastFailure         time.Time
	errorCounts         map[taxonomy.Kind]int64
	latencies           latencyRing
	totalLatencyMs      float64
	minutes             minuteSeries
	latencyBaseline     *ewma
	errorRateBaseline   *ewma
}

// Collector is the central metrics sink.
type Collector struct {
	config Config
	prom   *Prom
	logger *slog.Logger

	intake chan Outcome
	done   chan struct{}

	mu        sync.RWMutex
	providers map[string]*providerSeries
}

// NewCollector creates a collector registered against the given registry.
// A nil registry gets a fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	cfg = cfg.withDefaults()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	return &Collector{
		config:    cfg,
		prom:      NewProm(cfg, registry),
		logger:    slog.Default().With("component", "metrics"),
		intake:    make(chan Outcome, cfg.IntakeBuffer),
		done:      make(chan struct{}),
		providers: make(map[string]*providerSeries),
	}
}

// Start launches the intake loop. It returns immediately; the loop runs
// until the context is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case o := <-c.intake:
				c.fold(o)
			}
		}
	}()
}

// Close stops the intake loop and folds anything still buffered.
func (c *Collector) Close() {
	close(c.done)
	for {
		select {
		case o := <-c.intake:
			c.fold(o)
		default:
			return
		}
	}
}

// Record submits an outcome without blocking. Full intake drops the outcome
// and counts the drop.
func (c *Collector) Record(o Outcome) {
	if o.At.IsZero() {
		o.At = time.Now()
	}
	select {
	case c.intake <- o:
	default:
		c.prom.droppedOutcomes.Inc()
	}
}

// fold applies one outcome to the Prometheus and realtime layers.
func (c *Collector) fold(o Outcome) {
	status := "success"
	if o.Kind != "" {
		status = "error"
	}
	latencyMs := float64(o.Latency.Milliseconds())

	c.prom.requestsTotal.WithLabelValues(o.Provider, o.Model, status).Inc()
	c.prom.requestDuration.WithLabelValues(o.Provider, o.Model).Observe(o.Latency.Seconds())
	if o.Tokens > 0 {
		c.prom.tokensTotal.WithLabelValues(o.Provider, o.Model).Add(float64(o.Tokens))
	}
	if o.Kind != "" {
		c.prom.errorsTotal.WithLabelValues(o.Provider, string(o.Kind)).Inc()
	}
	if o.Repaired {
		c.prom.repairsTotal.WithLabelValues(o.Provider).Inc()
	}
	if o.Fallback {
		c.prom.fallbackTotal.Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.series(o.Provider)
	s.total++
	s.totalLatencyMs += latencyMs
	s.latencies.add(latencyMs)
	s.minutes.record(o.At, o.Kind != "", latencyMs)
	s.latencyBaseline.update(latencyMs)

	if o.Kind != "" {
		s.failures++
		s.consecutiveFailures++
		s.lastFailure = o.At
		s.errorCounts[o.Kind]++
		s.errorRateBaseline.update(1)
	} else {
		s.consecutiveFailures = 0
		s.lastSuccess = o.At
		s.errorRateBaseline.update(0)
	}
}

// series returns (creating if needed) the state for a provider.
// Callers hold c.mu.
func (c *Collector) series(provider string) *providerSeries {
	s, ok := c.providers[provider]
	if !ok {
		s = &providerSeries{
			errorCounts:       make(map[taxonomy.Kind]int64),
			latencyBaseline:   newEWMA(c.config.EWMAAlpha),
			errorRateBaseline: newEWMA(c.config.EWMAAlpha),
		}
		c.providers[provider] = s
	}
	return s
}

// RecordPromiseDetection counts a refused deferred value.
func (c *Collector) RecordPromiseDetection(provider, location string) {
	c.prom.promiseDetections.WithLabelValues(provider).Inc()
	c.logger.Warn("promise detection recorded", "provider", provider, "location", location)
}

// SetProviderHealth publishes a provider health transition.
func (c *Collector) SetProviderHealth(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	c.prom.providerHealthy.WithLabelValues(provider).Set(v)
}

// SetCircuitState publishes a breaker state (0 closed, 1 open, 2 half-open).
func (c *Collector) SetCircuitState(provider string, state float64) {
	c.prom.circuitState.WithLabelValues(provider).Set(state)
}

// Prune drops per-minute history older than the retention window. The
// aggregation cron calls this periodically.
func (c *Collector) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.providers {
		s.minutes.prune(now)
	}
}
