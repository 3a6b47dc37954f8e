package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"oneiro-hq/morpheus/pkg/taxonomy"
)

// recordingChannel captures deliveries for assertions.
type recordingChannel struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *recordingChannel) Name() string { return "recording" }

func (c *recordingChannel) Deliver(_ context.Context, alert *Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, *alert)
	return nil
}

func (c *recordingChannel) delivered() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

// newSyncManager creates a manager and drains deliveries synchronously.
func newSyncManager(cfg Config) (*Manager, *recordingChannel, func()) {
	ch := &recordingChannel{}
	m := NewManager(cfg, ch)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	drain := func() {
		// The worker is asynchronous; give it a moment to empty the queue.
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			if len(m.queue) == 0 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		cancel()
	}
	return m, ch, drain
}

func TestFire_NewAlertDelivers(t *testing.T) {
	m, ch, drain := newSyncManager(Config{})

	alert := m.Fire(RuleHighErrorRate, "openai", taxonomy.SeverityHigh, "error rate 60%", nil)
	drain()

	if alert.Occurrences != 1 {
		t.Errorf("Occurrences = %d, want 1", alert.Occurrences)
	}

	delivered := ch.delivered()
	if len(delivered) != 1 {
		t.Fatalf("delivered = %d, want 1", len(delivered))
	}
	if delivered[0].Rule != RuleHighErrorRate || delivered[0].Provider != "openai" {
		t.Errorf("delivered = %+v", delivered[0])
	}
}

func TestFire_SuppressionWindowDeduplicates(t *testing.T) {
	m, ch, drain := newSyncManager(Config{SuppressionWindow: 5 * time.Minute, EscalationThreshold: 100})

	m.Fire(RuleHighErrorRate, "openai", taxonomy.SeverityHigh, "fire 1", nil)
	m.Fire(RuleHighErrorRate, "openai", taxonomy.SeverityHigh, "fire 2", nil)
	m.Fire(RuleHighErrorRate, "openai", taxonomy.SeverityHigh, "fire 3", nil)
	drain()

	if got := len(ch.delivered()); got != 1 {
		t.Errorf("delivered = %d, want 1 (repeats suppressed)", got)
	}

	active := m.Active()
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
	if active[0].Occurrences != 3 {
		t.Errorf("Occurrences = %d, want 3", active[0].Occurrences)
	}
}

func TestFire_DifferentProvidersDoNotSuppress(t *testing.T) {
	m, ch, drain := newSyncManager(Config{})

	m.Fire(RuleHighErrorRate, "openai", taxonomy.SeverityHigh, "a", nil)
	m.Fire(RuleHighErrorRate, "anthropic", taxonomy.SeverityHigh, "b", nil)
	drain()

	if got := len(ch.delivered()); got != 2 {
		t.Errorf("delivered = %d, want 2", got)
	}
}

func TestFire_EscalationBumpsSeverity(t *testing.T) {
	m, ch, drain := newSyncManager(Config{EscalationThreshold: 5})

	for i := 0; i < 5; i++ {
		m.Fire(RuleConsecutiveFailures, "openai", taxonomy.SeverityHigh, "failing", nil)
	}
	drain()

	delivered := ch.delivered()
	// First firing plus the escalation redelivery.
	if len(delivered) != 2 {
		t.Fatalf("delivered = %d, want 2", len(delivered))
	}
	last := delivered[len(delivered)-1]
	if !last.Escalated {
		t.Error("Expected escalated delivery")
	}
	if last.Severity != taxonomy.SeverityCritical {
		t.Errorf("Severity = %s, want critical", last.Severity)
	}
}

func TestFire_ProviderHourlyCap(t *testing.T) {
	m, ch, drain := newSyncManager(Config{
		SuppressionWindow:   time.Nanosecond, // effectively off
		ProviderHourlyCap:   3,
		EscalationThreshold: 1000,
	})

	for i := 0; i < 10; i++ {
		m.Fire(RuleHighErrorRate, "openai", taxonomy.SeverityHigh, "x", nil)
		time.Sleep(time.Millisecond)
	}
	drain()

	if got := len(ch.delivered()); got != 3 {
		t.Errorf("delivered = %d, want 3 (capped)", got)
	}
}

func TestResolve_MovesToHistoryAndDelivers(t *testing.T) {
	m, ch, drain := newSyncManager(Config{})

	m.Fire(RuleCircuitOpen, "openai", taxonomy.SeverityHigh, "circuit open", nil)
	if !m.Resolve(RuleCircuitOpen, "openai") {
		t.Fatal("Resolve should report true for an active alert")
	}
	drain()

	if len(m.Active()) != 0 {
		t.Error("Alert should leave the active set on resolve")
	}

	history := m.History(10)
	if len(history) != 1 {
		t.Fatalf("history = %d, want 1", len(history))
	}
	if !history[0].Resolved() {
		t.Error("History entry should be resolved")
	}

	delivered := ch.delivered()
	if len(delivered) != 2 {
		t.Errorf("delivered = %d, want 2 (fire + resolution)", len(delivered))
	}
}

func TestResolve_UnknownAlert(t *testing.T) {
	m, _, drain := newSyncManager(Config{})
	defer drain()

	if m.Resolve("nope", "openai") {
		t.Error("Resolve of unknown alert should report false")
	}
}

func TestFire_ReFireAfterResolveIsNewAlert(t *testing.T) {
	m, _, drain := newSyncManager(Config{})
	defer drain()

	first := m.Fire(RuleCircuitOpen, "openai", taxonomy.SeverityHigh, "open", nil)
	m.Resolve(RuleCircuitOpen, "openai")
	second := m.Fire(RuleCircuitOpen, "openai", taxonomy.SeverityHigh, "open again", nil)

	if first.ID == second.ID {
		t.Error("Re-fire after resolve should mint a new alert")
	}
	if second.Occurrences != 1 {
		t.Errorf("Occurrences = %d, want 1", second.Occurrences)
	}
}
