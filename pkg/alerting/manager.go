package alerting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Config tunes the manager.
type Config struct {
	// SuppressionWindow deduplicates repeat fires of the same alert.
	SuppressionWindow time.Duration

	// EscalationThreshold is the occurrence count within EscalationWindow
	// that escalates an alert.
	EscalationThreshold int

	// EscalationWindow is the period escalation counts over.
	EscalationWindow time.Duration

	// ProviderHourlyCap bounds deliveries per provider per hour.
	ProviderHourlyCap int

	// HistoryLimit bounds the resolved-alert history.
	HistoryLimit int

	// QueueSize is the delivery queue capacity.
	QueueSize int

	// DeliveryTimeout bounds one channel delivery.
	DeliveryTimeout time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		SuppressionWindow:   5 * time.Minute,
		EscalationThreshold: 5,
		EscalationWindow:    time.Hour,
		ProviderHourlyCap:   20,
		HistoryLimit:        500,
		QueueSize:           256,
		DeliveryTimeout:     10 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SuppressionWindow <= 0 {
		c.SuppressionWindow = d.SuppressionWindow
	}
	if c.EscalationThreshold <= 0 {
		c.EscalationThreshold = d.EscalationThreshold
	}
	if c.EscalationWindow <= 0 {
		c.EscalationWindow = d.EscalationWindow
	}
	if c.ProviderHourlyCap <= 0 {
		c.ProviderHourlyCap = d.ProviderHourlyCap
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = d.DeliveryTimeout
	}
	return c
}

// activeAlert is an unresolved alert plus its firing timeline.
type activeAlert struct {
	alert *Alert
	fires []time.Time
}

// Manager owns the alert lifecycle.
type Manager struct {
	config   Config
	channels []Channel
	logger   *slog.Logger

	queue chan *Alert
	done  chan struct{}

	mu         sync.Mutex
	active     map[alertKey]*activeAlert
	history    []*Alert
	deliveries map[string][]time.Time
}

// NewManager creates a manager delivering to the given channels.
func NewManager(cfg Config, channels ...Channel) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		config:     cfg,
		channels:   channels,
		logger:     slog.Default().With("component", "alerting"),
		queue:      make(chan *Alert, cfg.QueueSize),
		done:       make(chan struct{}),
		active:     make(map[alertKey]*activeAlert),
		deliveries: make(map[string][]time.Time),
	}
}

// Start launches the delivery worker.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.done:
				return
			case alert := <-m.queue:
				m.deliver(ctx, alert)
			}
		}
	}()
}

// Close stops the delivery worker.
func (m *Manager) Close() {
	close(m.done)
}

// deliver pushes one alert to every channel.
func (m *Manager) deliver(ctx context.Context, alert *Alert) {
	for _, ch := range m.channels {
		deliveryCtx, cancel := context.WithTimeout(ctx, m.config.DeliveryTimeout)
		if err := ch.Deliver(deliveryCtx, alert); err != nil {
			m.logger.Error("alert delivery failed",
				"channel", ch.Name(),
				"rule", alert.Rule,
				"error", err,
			)
		}
		cancel()
	}
}

// Fire raises or re-fires an alert.
//
// A fire inside the suppression window only increments the occurrence
// count. Crossing the escalation threshold inside the escalation window
// bumps severity to critical and delivers once more. Deliveries beyond the
// per-provider hourly cap are counted but not sent.
func (m *Manager) Fire(rule, provider string, severity taxonomy.Severity, message string, alertContext map[string]any) *Alert {
	now := time.Now()

	m.mu.Lock()
	key := alertKey{rule: rule, provider: provider}
	entry, exists := m.active[key]

	if !exists {
		entry = &activeAlert{
			alert: &Alert{
				ID:          uuid.NewString(),
				Rule:        rule,
				Provider:    provider,
				Severity:    severity,
				Message:     message,
				Context:     alertContext,
				FiredAt:     now,
				LastFiredAt: now,
				Occurrences: 1,
			},
			fires: []time.Time{now},
		}
		m.active[key] = entry
		alert := *entry.alert
		shouldDeliver := m.admitDeliveryLocked(provider, now)
		m.mu.Unlock()

		if shouldDeliver {
			m.enqueue(&alert)
		}
		return entry.alert
	}

	entry.alert.Occurrences++
	entry.alert.LastFiredAt = now
	entry.alert.Message = message
	if alertContext != nil {
		entry.alert.Context = alertContext
	}
	entry.fires = append(entry.fires, now)
	entry.pruneFires(now.Add(-m.config.EscalationWindow))

	suppressed := now.Sub(entry.alert.FiredAt) < m.config.SuppressionWindow && !m.shouldEscalateLocked(entry)
	escalate := !entry.alert.Escalated && m.shouldEscalateLocked(entry)
	if escalate {
		entry.alert.Escalated = true
		entry.alert.Severity = taxonomy.SeverityCritical
	}

	var toDeliver *Alert
	if escalate || !suppressed {
		if m.admitDeliveryLocked(provider, now) {
			alert := *entry.alert
			toDeliver = &alert
		}
		// Redelivery restarts the suppression clock.
		entry.alert.FiredAt = now
	}
	m.mu.Unlock()

	if toDeliver != nil {
		m.enqueue(toDeliver)
	}
	return entry.alert
}

// shouldEscalateLocked reports whether the firing timeline crosses the
// escalation threshold. Caller holds m.mu.
func (m *Manager) shouldEscalateLocked(entry *activeAlert) bool {
	return len(entry.fires) >= m.config.EscalationThreshold
}

// pruneFires drops firing timestamps older than the cutoff.
func (e *activeAlert) pruneFires(cutoff time.Time) {
	firstKept := len(e.fires)
	for i, ts := range e.fires {
		if !ts.Before(cutoff) {
			firstKept = i
			break
		}
	}
	if firstKept > 0 {
		e.fires = append([]time.Time(nil), e.fires[firstKept:]...)
	}
}

// admitDeliveryLocked enforces the per-provider hourly delivery cap.
// Caller holds m.mu.
func (m *Manager) admitDeliveryLocked(provider string, now time.Time) bool {
	cutoff := now.Add(-time.Hour)
	kept := m.deliveries[provider][:0]
	for _, ts := range m.deliveries[provider] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	m.deliveries[provider] = kept

	if len(kept) >= m.config.ProviderHourlyCap {
		return false
	}
	m.deliveries[provider] = append(kept, now)
	return true
}

// enqueue hands an alert to the delivery worker without blocking.
func (m *Manager) enqueue(alert *Alert) {
	select {
	case m.queue <- alert:
	default:
		m.logger.Error("alert queue full, dropping delivery",
			"rule", alert.Rule,
			"provider", alert.Provider,
		)
	}
}

// Resolve clears an active alert. Resolution is delivered so operators see
// recovery, and the alert moves to history.
func (m *Manager) Resolve(rule, provider string) bool {
	m.mu.Lock()
	key := alertKey{rule: rule, provider: provider}
	entry, exists := m.active[key]
	if !exists {
		m.mu.Unlock()
		return false
	}

	delete(m.active, key)
	entry.alert.ResolvedAt = time.Now()
	m.history = append(m.history, entry.alert)
	if len(m.history) > m.config.HistoryLimit {
		m.history = m.history[len(m.history)-m.config.HistoryLimit:]
	}
	alert := *entry.alert
	m.mu.Unlock()

	m.logger.Info("alert resolved",
		"rule", rule,
		"provider", provider,
		"occurrences", alert.Occurrences,
	)
	m.enqueue(&alert)
	return true
}

// Active returns the unresolved alerts, newest first.
func (m *Manager) Active() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.active))
	for _, entry := range m.active {
		out = append(out, *entry.alert)
	}
	return out
}

// History returns up to limit resolved alerts, newest last.
func (m *Manager) History(limit int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Alert, 0, n)
	for _, a := range m.history[len(m.history)-n:] {
		out = append(out, *a)
	}
	return out
}
