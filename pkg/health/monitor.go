package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"oneiro-hq/morpheus/pkg/breaker"
	"oneiro-hq/morpheus/pkg/metrics"
)

// Status is a provider's health verdict.
type Status string

// Statuses.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Config tunes the monitor.
type Config struct {
	// ProbeInterval is the active probe cadence.
	ProbeInterval time.Duration

	// ProbeTimeout bounds one probe.
	ProbeTimeout time.Duration

	// SuccessRateFloor is the minimum success rate for healthy.
	SuccessRateFloor float64

	// CriticalConsecutiveFailures marks a provider unhealthy outright.
	CriticalConsecutiveFailures int

	// ProbeFailureThreshold is how many consecutive probe failures mark an
	// idle provider unhealthy.
	ProbeFailureThreshold int

	// StuckOpenFactor: a circuit open for longer than this multiple of its
	// cooldown marks the provider unhealthy.
	StuckOpenFactor float64

	// EvaluationWindow is the trailing traffic window used for passive
	// evaluation.
	EvaluationWindow time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		ProbeInterval:               60 * time.Second,
		ProbeTimeout:                10 * time.Second,
		SuccessRateFloor:            0.9,
		CriticalConsecutiveFailures: 5,
		ProbeFailureThreshold:       3,
		StuckOpenFactor:             2.0,
		EvaluationWindow:            5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.SuccessRateFloor <= 0 {
		c.SuccessRateFloor = d.SuccessRateFloor
	}
	if c.CriticalConsecutiveFailures <= 0 {
		c.CriticalConsecutiveFailures = d.CriticalConsecutiveFailures
	}
	if c.ProbeFailureThreshold <= 0 {
		c.ProbeFailureThreshold = d.ProbeFailureThreshold
	}
	if c.StuckOpenFactor <= 0 {
		c.StuckOpenFactor = d.StuckOpenFactor
	}
	if c.EvaluationWindow <= 0 {
		c.EvaluationWindow = d.EvaluationWindow
	}
	return c
}

// Prober is the piece of a provider the monitor needs for active checks.
type Prober interface {
	Probe(ctx context.Context) error
}

// Target is one provider under observation.
type Target struct {
	// Name is the provider instance name.
	Name string

	// SLATargetMs is the latency target; average latency above it degrades
	// the provider.
	SLATargetMs int

	// Prober runs active checks. Nil disables probing for this target.
	Prober Prober

	// Breaker is the provider's circuit breaker.
	Breaker *breaker.Breaker

	// Cooldown is the breaker's configured cooldown, used for the
	// stuck-open rule.
	Cooldown time.Duration
}

// Evaluation is one provider's verdict with the evidence behind it.
type Evaluation struct {
	Provider            string    `json:"provider"`
	Status              Status    `json:"status"`
	SuccessRate         float64   `json:"success_rate"`
	AvgLatencyMs        float64   `json:"avg_latency_ms"`
	SLATargetMs         int       `json:"sla_target_ms"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CircuitState        string    `json:"circuit_state"`
	WindowRequests      int64     `json:"window_requests"`
	LastProbeAt         time.Time `json:"last_probe_at,omitempty"`
	LastProbeError      string    `json:"last_probe_error,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
}

// StatusChangeFunc observes health transitions.
type StatusChangeFunc func(provider string, from, to Status, eval Evaluation)

// probeState tracks active-check results per target.
type probeState struct {
	lastProbeAt         time.Time
	lastProbeErr        error
	consecutiveFailures int
}

// Monitor evaluates provider health passively and actively.
type Monitor struct {
	config    Config
	collector *metrics.Collector
	logger    *slog.Logger

	mu       sync.RWMutex
	targets  map[string]Target
	probes   map[string]*probeState
	statuses map[string]Status

	onChange StatusChangeFunc
}

// NewMonitor creates a monitor reading passive signals from the collector.
func NewMonitor(cfg Config, collector *metrics.Collector) *Monitor {
	return &Monitor{
		config:    cfg.withDefaults(),
		collector: collector,
		logger:    slog.Default().With("component", "health"),
		targets:   make(map[string]Target),
		probes:    make(map[string]*probeState),
		statuses:  make(map[string]Status),
	}
}

// Register adds a provider to observation. Providers start healthy.
func (m *Monitor) Register(t Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.Name] = t
	m.probes[t.Name] = &probeState{}
	m.statuses[t.Name] = StatusHealthy
}

// OnStatusChange registers the transition observer.
func (m *Monitor) OnStatusChange(fn StatusChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Start launches the probe loop. It returns immediately and stops when the
// context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.config.ProbeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probeAll(ctx)
				m.EvaluateAll()
			}
		}
	}()
}

// probeAll runs one active check against every registered target.
func (m *Monitor) probeAll(ctx context.Context) {
	m.mu.RLock()
	targets := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		targets = append(targets, t)
	}
	m.mu.RUnlock()

	for _, t := range targets {
		if t.Prober == nil {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
		err := t.Prober.Probe(probeCtx)
		cancel()

		m.mu.Lock()
		ps := m.probes[t.Name]
		ps.lastProbeAt = time.Now()
		ps.lastProbeErr = err
		if err != nil {
			ps.consecutiveFailures++
		} else {
			ps.consecutiveFailures = 0
		}
		failures := ps.consecutiveFailures
		m.mu.Unlock()

		if err != nil {
			m.logger.Warn("active probe failed",
				"provider", t.Name,
				"consecutive_probe_failures", failures,
				"error", err,
			)
		}
	}
}

// Evaluate computes the current verdict for one provider and records the
// transition if the status changed.
func (m *Monitor) Evaluate(name string) (Evaluation, bool) {
	m.mu.RLock()
	t, ok := m.targets[name]
	if !ok {
		m.mu.RUnlock()
		return Evaluation{}, false
	}
	ps := *m.probes[name]
	previous := m.statuses[name]
	m.mu.RUnlock()

	eval := m.evaluate(t, ps)

	if eval.Status != previous {
		m.mu.Lock()
		m.statuses[name] = eval.Status
		onChange := m.onChange
		m.mu.Unlock()

		m.logger.Info("provider health changed",
			"provider", name,
			"from", string(previous),
			"to", string(eval.Status),
		)
		if m.collector != nil {
			m.collector.SetProviderHealth(name, eval.Status == StatusHealthy)
		}
		if onChange != nil {
			onChange(name, previous, eval.Status, eval)
		}
	}

	return eval, true
}

// EvaluateAll evaluates every registered provider.
func (m *Monitor) EvaluateAll() map[string]Evaluation {
	m.mu.RLock()
	names := make([]string, 0, len(m.targets))
	for name := range m.targets {
		names = append(names, name)
	}
	m.mu.RUnlock()

	out := make(map[string]Evaluation, len(names))
	for _, name := range names {
		if eval, ok := m.Evaluate(name); ok {
			out[name] = eval
		}
	}
	return out
}

// Status returns the last recorded status for a provider.
func (m *Monitor) Status(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[name]
	return s, ok
}

// evaluate applies the health rules to one target.
//
// Unhealthy dominates: a critical consecutive-failure run, a stuck-open
// circuit, or repeated probe failures each force the verdict regardless of
// aggregate rates. Otherwise the trailing window decides healthy versus
// degraded.
func (m *Monitor) evaluate(t Target, ps probeState) Evaluation {
	eval := Evaluation{
		Provider:    t.Name,
		Status:      StatusHealthy,
		SuccessRate: 1,
		SLATargetMs: t.SLATargetMs,
		CheckedAt:   time.Now(),
		LastProbeAt: ps.lastProbeAt,
	}
	if ps.lastProbeErr != nil {
		eval.LastProbeError = ps.lastProbeErr.Error()
	}

	var snap breaker.Snapshot
	if t.Breaker != nil {
		snap = t.Breaker.Snapshot()
		eval.CircuitState = snap.State
	}

	var stats metrics.ProviderStats
	if m.collector != nil {
		if s, ok := m.collector.Stats(t.Name); ok {
			stats = s
			eval.ConsecutiveFailures = s.ConsecutiveFailures
		}
		if w, ok := m.collector.Window(t.Name, m.config.EvaluationWindow); ok && w.Requests > 0 {
			eval.SuccessRate = w.SuccessRate
			eval.AvgLatencyMs = w.AvgLatencyMs
			eval.WindowRequests = w.Requests
		}
	}

	// Forced-unhealthy rules.
	switch {
	case stats.ConsecutiveFailures >= m.config.CriticalConsecutiveFailures:
		eval.Status = StatusUnhealthy
		return eval

	case snap.State == breaker.StateOpen.String() && t.Cooldown > 0 &&
		!snap.OpenedAt.IsZero() &&
		time.Since(snap.OpenedAt) > time.Duration(m.config.StuckOpenFactor*float64(t.Cooldown)):
		eval.Status = StatusUnhealthy
		return eval

	case ps.consecutiveFailures >= m.config.ProbeFailureThreshold:
		eval.Status = StatusUnhealthy
		return eval
	}

	// Degraded rules: the provider works but below expectations.
	if snap.State != "" && snap.State != breaker.StateClosed.String() {
		eval.Status = StatusDegraded
		return eval
	}
	if eval.WindowRequests > 0 {
		if eval.SuccessRate < m.config.SuccessRateFloor {
			eval.Status = StatusDegraded
			return eval
		}
		if t.SLATargetMs > 0 && eval.AvgLatencyMs > float64(t.SLATargetMs) {
			eval.Status = StatusDegraded
			return eval
		}
	}
	if ps.consecutiveFailures > 0 {
		eval.Status = StatusDegraded
		return eval
	}

	return eval
}
