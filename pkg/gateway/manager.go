package gateway

import (
	"log/slog"
	"sort"
	"sync"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/breaker"
	"oneiro-hq/morpheus/pkg/extract"
	"oneiro-hq/morpheus/pkg/fallback"
	"oneiro-hq/morpheus/pkg/health"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/providers"
	"oneiro-hq/morpheus/pkg/ratelimit"
	"oneiro-hq/morpheus/pkg/retry"
	"oneiro-hq/morpheus/pkg/schema"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Config tunes the manager.
type Config struct {
	// Schema is the default validation target.
	Schema string

	// Scoring weights. Score = PriorityWeight·priorityScore +
	// SuccessWeight·successRate − LatencyWeight·normalizedLatency −
	// circuit penalty.
	PriorityWeight float64
	SuccessWeight  float64
	LatencyWeight  float64

	// OpenCircuitPenalty and HalfOpenCircuitPenalty subtract from the
	// score while the breaker is not closed.
	OpenCircuitPenalty     float64
	HalfOpenCircuitPenalty float64

	// LatencyNormMs scales average latency into [0,1] for scoring.
	LatencyNormMs float64

	// DefaultTemperature and DefaultMaxTokens seed generation requests
	// that do not specify their own.
	DefaultTemperature float64
	DefaultMaxTokens   int

	// Breaker is the per-provider circuit breaker tuning.
	Breaker breaker.Config
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		Schema:                 schema.DreamResponseName,
		PriorityWeight:         0.3,
		SuccessWeight:          0.5,
		LatencyWeight:          0.2,
		OpenCircuitPenalty:     0.5,
		HalfOpenCircuitPenalty: 0.25,
		LatencyNormMs:          10000,
		DefaultTemperature:     0.7,
		DefaultMaxTokens:       2048,
		Breaker:                breaker.DefaultConfig(),
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Schema == "" {
		c.Schema = d.Schema
	}
	if c.PriorityWeight == 0 {
		c.PriorityWeight = d.PriorityWeight
	}
	if c.SuccessWeight == 0 {
		c.SuccessWeight = d.SuccessWeight
	}
	if c.LatencyWeight == 0 {
		c.LatencyWeight = d.LatencyWeight
	}
	if c.OpenCircuitPenalty == 0 {
		c.OpenCircuitPenalty = d.OpenCircuitPenalty
	}
	if c.HalfOpenCircuitPenalty == 0 {
		c.HalfOpenCircuitPenalty = d.HalfOpenCircuitPenalty
	}
	if c.LatencyNormMs == 0 {
		c.LatencyNormMs = d.LatencyNormMs
	}
	if c.DefaultTemperature == 0 {
		c.DefaultTemperature = d.DefaultTemperature
	}
	if c.DefaultMaxTokens == 0 {
		c.DefaultMaxTokens = d.DefaultMaxTokens
	}
	return c
}

// HealthFunc reports the last recorded health verdict for a provider.
// The monitor's active probes are the only path back from unhealthy, so
// the gateway never dispatches to a provider the monitor has written off.
type HealthFunc func(provider string) (health.Status, bool)

// Deps are the collaborators the manager orchestrates.
type Deps struct {
	Pipeline  *schema.Pipeline
	Extractor *extract.Extractor
	Retry     *retry.Orchestrator
	Metrics   *metrics.Collector
	Alerts    *alerting.Manager
	Fallback  *fallback.Synthesizer

	// Health gates selection. Nil disables health gating.
	Health HealthFunc
}

// Managed is one provider with its guards.
type Managed struct {
	Provider providers.Provider
	Config   providers.Config
	Breaker  *breaker.Breaker
	Limiter  *ratelimit.Limiter

	// Disabled parks the provider without unregistering it. Written only
	// under the manager lock.
	Disabled bool
}

// Manager routes generation requests across managed providers.
type Manager struct {
	config Config
	deps   Deps
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Managed
}

// NewManager creates a manager.
func NewManager(cfg Config, deps Deps) *Manager {
	m := &Manager{
		config:  cfg.withDefaults(),
		deps:    deps,
		logger:  slog.Default().With("component", "gateway"),
		entries: make(map[string]*Managed),
	}

	if deps.Extractor != nil && deps.Metrics != nil {
		deps.Extractor.OnPromiseDetected(deps.Metrics.RecordPromiseDetection)
	}

	return m
}

// Register adds a provider under management, building its breaker and
// limiter from the provider config.
func (m *Manager) Register(p providers.Provider) {
	cfg := p.Config()
	name := cfg.Name

	b := breaker.New(name, m.config.Breaker)
	b.OnStateChange(m.circuitObserver(name))

	limiter := ratelimit.NewLimiter(name, ratelimit.Config{
		RPM:        cfg.RPM,
		Concurrent: cfg.MaxConcurrent,
	})

	m.mu.Lock()
	m.entries[name] = &Managed{
		Provider: p,
		Config:   cfg,
		Breaker:  b,
		Limiter:  limiter,
	}
	m.mu.Unlock()

	m.logger.Info("provider registered",
		"provider", name,
		"type", cfg.Type,
		"priority", cfg.Priority,
	)
}

// circuitObserver publishes breaker transitions to metrics and alerting.
func (m *Manager) circuitObserver(name string) breaker.StateChangeFunc {
	return func(provider string, from, to breaker.State) {
		m.logger.Warn("circuit state changed",
			"provider", provider,
			"from", from.String(),
			"to", to.String(),
		)

		if m.deps.Metrics != nil {
			m.deps.Metrics.SetCircuitState(provider, float64(to))
		}
		if m.deps.Alerts == nil {
			return
		}
		switch to {
		case breaker.StateOpen:
			m.deps.Alerts.Fire(alerting.RuleCircuitOpen, provider, taxonomy.SeverityHigh,
				"circuit breaker opened for provider "+provider, nil)
		case breaker.StateClosed:
			m.deps.Alerts.Resolve(alerting.RuleCircuitOpen, provider)
		}
	}
}

// Entry returns the managed entry for a provider.
func (m *Manager) Entry(name string) (*Managed, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	return e, ok
}

// Names returns the managed provider names, unordered.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	return names
}

// Close closes every managed provider.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, e := range m.entries {
		if err := e.Provider.Close(); err != nil {
			m.logger.Warn("provider close failed", "provider", name, "error", err)
		}
	}
}

// scored pairs an entry with its composite score for ranking. Priority is
// captured under the manager lock so a concurrent Reconfigure cannot race
// the sort.
type scored struct {
	entry    *Managed
	priority int
	score    float64
}

// rank returns the dispatchable providers ordered by composite score,
// best first. Disabled providers, providers the health monitor marks
// unhealthy, and providers whose circuit cannot admit a dispatch are
// excluded entirely; demoted-but-serving states (degraded health,
// half-open circuit) stay in with a score penalty. Ties break by
// configured priority, then by name for determinism.
func (m *Manager) rank() []*Managed {
	m.mu.RLock()
	candidates := make([]scored, 0, len(m.entries))
	for _, e := range m.entries {
		if e.Disabled {
			continue
		}
		candidates = append(candidates, scored{entry: e, priority: e.Config.Priority})
	}
	m.mu.RUnlock()

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		name := c.entry.Config.Name
		if m.deps.Health != nil {
			if status, ok := m.deps.Health(name); ok && status == health.StatusUnhealthy {
				m.logger.Debug("provider excluded from selection", "provider", name, "reason", "unhealthy")
				continue
			}
		}
		if !c.entry.Breaker.Available() {
			m.logger.Debug("provider excluded from selection", "provider", name, "reason", "circuit_open")
			continue
		}
		c.score = m.score(c.entry, c.priority)
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].priority != ranked[j].priority {
			return ranked[i].priority > ranked[j].priority
		}
		return ranked[i].entry.Config.Name < ranked[j].entry.Config.Name
	})

	out := make([]*Managed, len(ranked))
	for i, s := range ranked {
		out[i] = s.entry
	}
	return out
}

// score computes the composite selection score for one provider.
func (m *Manager) score(e *Managed, priority int) float64 {
	// Higher configured priority means more preferred; normalize into
	// [0, 1) so the weight stays comparable to the other terms.
	if priority < 0 {
		priority = 0
	}
	priorityScore := 1.0 - 1.0/float64(1+priority)

	successRate := 1.0
	var normLatency float64
	if m.deps.Metrics != nil {
		if stats, ok := m.deps.Metrics.Stats(e.Config.Name); ok && stats.TotalRequests > 0 {
			successRate = stats.SuccessRate
			normLatency = stats.AvgLatencyMs / m.config.LatencyNormMs
			if normLatency > 1 {
				normLatency = 1
			}
		}
	}

	score := m.config.PriorityWeight*priorityScore +
		m.config.SuccessWeight*successRate -
		m.config.LatencyWeight*normLatency

	switch e.Breaker.Snapshot().State {
	case breaker.StateOpen.String():
		score -= m.config.OpenCircuitPenalty
	case breaker.StateHalfOpen.String():
		score -= m.config.HalfOpenCircuitPenalty
	}

	return score
}

// Reconfigure applies the hot-reloadable subset of a provider's settings:
// enabled and priority. Unknown providers are ignored; registering new
// providers or changing credentials still requires a restart.
func (m *Manager) Reconfigure(name string, enabled bool, priority int) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	changed := e.Disabled == enabled || e.Config.Priority != priority
	e.Disabled = !enabled
	e.Config.Priority = priority
	m.mu.Unlock()

	if changed {
		m.logger.Info("provider reconfigured",
			"provider", name,
			"enabled", enabled,
			"priority", priority,
		)
	}
}
