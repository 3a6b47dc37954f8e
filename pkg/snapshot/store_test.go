package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "snapshots.db")})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(at time.Time) *metrics.Report {
	return &metrics.Report{
		GeneratedAt: at,
		Providers: map[string]metrics.ProviderStats{
			"openai": {
				Provider:      "openai",
				TotalRequests: 120,
				TotalFailures: 12,
				SuccessRate:   0.9,
				AvgLatencyMs:  850,
				P50LatencyMs:  700,
				P95LatencyMs:  2100,
				ErrorBreakdown: map[taxonomy.Kind]int64{
					taxonomy.KindTimeout: 12,
				},
			},
		},
		LastHour: map[string]metrics.WindowStats{
			"openai": {Requests: 40, Failures: 4, SuccessRate: 0.9},
		},
	}
}

func TestSaveReport_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.SaveReport(ctx, sampleReport(now)); err != nil {
		t.Fatalf("SaveReport returned error: %v", err)
	}

	rows, err := s.ProviderHistory(ctx, "openai", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ProviderHistory returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	r := rows[0]
	if r.TotalRequests != 120 || r.TotalFailures != 12 {
		t.Errorf("counts = %d/%d, want 120/12", r.TotalRequests, r.TotalFailures)
	}
	if r.SuccessRate != 0.9 {
		t.Errorf("SuccessRate = %v, want 0.9", r.SuccessRate)
	}
	if r.WindowRequests != 40 {
		t.Errorf("WindowRequests = %d, want 40", r.WindowRequests)
	}
	if r.ErrorBreakdown == "" {
		t.Error("ErrorBreakdown should carry the serialized counts")
	}
}

func TestProviderHistory_CutoffExcludesOldRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()
	if err := s.SaveReport(ctx, sampleReport(old)); err != nil {
		t.Fatalf("SaveReport(old): %v", err)
	}
	if err := s.SaveReport(ctx, sampleReport(recent)); err != nil {
		t.Fatalf("SaveReport(recent): %v", err)
	}

	rows, err := s.ProviderHistory(ctx, "openai", recent.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ProviderHistory returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1 (old row excluded)", len(rows))
	}
}

func TestSaveAlerts_ResolutionUpdatesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	alert := alerting.Alert{
		ID:          "alert-1",
		Rule:        alerting.RuleHighErrorRate,
		Provider:    "openai",
		Severity:    taxonomy.SeverityHigh,
		Message:     "error rate 60%",
		Context:     map[string]any{"error_rate": 0.6},
		FiredAt:     now,
		LastFiredAt: now,
		Occurrences: 3,
	}
	if err := s.SaveAlerts(ctx, []alerting.Alert{alert}); err != nil {
		t.Fatalf("SaveAlerts returned error: %v", err)
	}

	alert.ResolvedAt = now.Add(time.Minute)
	if err := s.SaveAlerts(ctx, []alerting.Alert{alert}); err != nil {
		t.Fatalf("SaveAlerts (resolved) returned error: %v", err)
	}

	history, err := s.AlertHistory(ctx, now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("AlertHistory returned error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d, want 1 (re-save replaces)", len(history))
	}
	if !history[0].Resolved() {
		t.Error("Archived alert should carry the resolution")
	}
	if history[0].Context["error_rate"] != 0.6 {
		t.Errorf("Context = %v", history[0].Context)
	}
}

func TestPrune_DropsExpiredRows(t *testing.T) {
	s, err := Open(Config{
		Path:      filepath.Join(t.TempDir(), "snapshots.db"),
		Retention: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := s.SaveReport(ctx, sampleReport(old)); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := s.SaveAlerts(ctx, []alerting.Alert{{
		ID: "alert-old", Rule: alerting.RuleCircuitOpen, Severity: taxonomy.SeverityHigh,
		Message: "old", FiredAt: old, Occurrences: 1,
	}}); err != nil {
		t.Fatalf("SaveAlerts: %v", err)
	}

	if err := s.Prune(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("Prune returned error: %v", err)
	}

	rows, _ := s.ProviderHistory(ctx, "openai", old.Add(-time.Hour))
	if len(rows) != 0 {
		t.Errorf("metric rows = %d, want 0 after prune", len(rows))
	}
	alerts, _ := s.AlertHistory(ctx, old.Add(-time.Hour), 10)
	if len(alerts) != 0 {
		t.Errorf("alert rows = %d, want 0 after prune", len(alerts))
	}
}
