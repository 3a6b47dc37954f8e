package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/taxonomy"
)

// Config tunes the snapshot store.
type Config struct {
	// Path is the database file path. ":memory:" works for tests.
	Path string

	// MaxOpenConns bounds the connection pool.
	MaxOpenConns int

	// MaxIdleConns bounds idle connections.
	MaxIdleConns int

	// BusyTimeout is how long a locked database is waited on.
	BusyTimeout time.Duration

	// Retention is how long snapshot rows are kept.
	Retention time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		Path:         "data/snapshots.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
		Retention:    30 * 24 * time.Hour,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = d.MaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = d.BusyTimeout
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	return c
}

// StoreError wraps a failed store operation.
type StoreError struct {
	// Op names the operation that failed.
	Op string

	// Err is the underlying database error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("snapshot store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// MetricRow is one persisted provider snapshot.
type MetricRow struct {
	ID                  string    `json:"id"`
	TakenAt             time.Time `json:"taken_at"`
	Provider            string    `json:"provider"`
	TotalRequests       int64     `json:"total_requests"`
	TotalFailures       int64     `json:"total_failures"`
	SuccessRate         float64   `json:"success_rate"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	AvgLatencyMs        float64   `json:"avg_latency_ms"`
	P50LatencyMs        float64   `json:"p50_latency_ms"`
	P95LatencyMs        float64   `json:"p95_latency_ms"`
	LatencyBaselineMs   float64   `json:"latency_baseline_ms"`
	ErrorRateBaseline   float64   `json:"error_rate_baseline"`
	WindowRequests      int64     `json:"window_requests"`
	WindowSuccessRate   float64   `json:"window_success_rate"`
	ErrorBreakdown      string    `json:"error_breakdown,omitempty"`
}

// Store persists metrics and alert snapshots in SQLite.
type Store struct {
	db     *sql.DB
	config Config
	logger *slog.Logger
}

// Open opens (creating if needed) the snapshot database.
func Open(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &Store{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "snapshot"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("snapshot store opened", "path", cfg.Path, "retention", cfg.Retention)
	return s, nil
}

// initialize enables WAL, sets the busy timeout, and applies the DDL.
func (s *Store) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return &StoreError{Op: "enable_wal", Err: err}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return &StoreError{Op: "set_busy_timeout", Err: err}
	}
	if _, err := s.db.Exec(DDL); err != nil {
		return &StoreError{Op: "create_schema", Err: err}
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return &StoreError{Op: "insert_schema_version", Err: err}
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return &StoreError{Op: "get_schema_version", Err: err}
	}
	if version != SchemaVersion {
		return &StoreError{Op: "schema_version_mismatch",
			Err: fmt.Errorf("expected version %d, got %d", SchemaVersion, version)}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport writes one metric row per provider in the report.
func (s *Store) SaveReport(ctx context.Context, report *metrics.Report) error {
	const query = `
		INSERT INTO metric_snapshots (
			id, taken_at, provider,
			total_requests, total_failures, success_rate, consecutive_failures,
			avg_latency_ms, p50_latency_ms, p95_latency_ms,
			latency_baseline_ms, error_rate_baseline,
			window_requests, window_success_rate, error_breakdown
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	for name, stats := range report.Providers {
		var breakdown any
		if len(stats.ErrorBreakdown) > 0 {
			raw, _ := json.Marshal(stats.ErrorBreakdown)
			breakdown = string(raw)
		}

		window := report.LastHour[name]
		_, err := tx.ExecContext(ctx, query,
			uuid.NewString(), report.GeneratedAt, name,
			stats.TotalRequests, stats.TotalFailures, stats.SuccessRate, stats.ConsecutiveFailures,
			stats.AvgLatencyMs, stats.P50LatencyMs, stats.P95LatencyMs,
			stats.LatencyBaselineMs, stats.ErrorRateBaseline,
			window.Requests, window.SuccessRate, breakdown,
		)
		if err != nil {
			return &StoreError{Op: "save_report", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}
	return nil
}

// SaveAlerts archives alerts. Re-saving an alert instance updates its row,
// so resolution timestamps land on already-archived fires.
func (s *Store) SaveAlerts(ctx context.Context, alerts []alerting.Alert) error {
	const query = `
		INSERT OR REPLACE INTO alert_snapshots (
			id, rule, provider, severity, message, context,
			fired_at, resolved_at, occurrences, escalated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	for _, a := range alerts {
		var alertContext any
		if len(a.Context) > 0 {
			raw, _ := json.Marshal(a.Context)
			alertContext = string(raw)
		}
		var resolvedAt any
		if a.Resolved() {
			resolvedAt = a.ResolvedAt
		}

		_, err := tx.ExecContext(ctx, query,
			a.ID, a.Rule, a.Provider, string(a.Severity), a.Message, alertContext,
			a.FiredAt, resolvedAt, a.Occurrences, a.Escalated,
		)
		if err != nil {
			return &StoreError{Op: "save_alerts", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}
	return nil
}

// ProviderHistory returns the metric rows for a provider since the cutoff,
// oldest first.
func (s *Store) ProviderHistory(ctx context.Context, provider string, since time.Time) ([]MetricRow, error) {
	const query = `
		SELECT id, taken_at, provider,
			total_requests, total_failures, success_rate, consecutive_failures,
			avg_latency_ms, p50_latency_ms, p95_latency_ms,
			latency_baseline_ms, error_rate_baseline,
			window_requests, window_success_rate,
			COALESCE(error_breakdown, '')
		FROM metric_snapshots
		WHERE provider = ? AND taken_at >= ?
		ORDER BY taken_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, provider, since)
	if err != nil {
		return nil, &StoreError{Op: "provider_history", Err: err}
	}
	defer rows.Close()

	var out []MetricRow
	for rows.Next() {
		var r MetricRow
		if err := rows.Scan(
			&r.ID, &r.TakenAt, &r.Provider,
			&r.TotalRequests, &r.TotalFailures, &r.SuccessRate, &r.ConsecutiveFailures,
			&r.AvgLatencyMs, &r.P50LatencyMs, &r.P95LatencyMs,
			&r.LatencyBaselineMs, &r.ErrorRateBaseline,
			&r.WindowRequests, &r.WindowSuccessRate, &r.ErrorBreakdown,
		); err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "provider_history", Err: err}
	}
	return out, nil
}

// AlertHistory returns archived alerts fired since the cutoff, newest
// first.
func (s *Store) AlertHistory(ctx context.Context, since time.Time, limit int) ([]alerting.Alert, error) {
	query := `
		SELECT id, rule, COALESCE(provider, ''), severity, message,
			COALESCE(context, ''), fired_at, resolved_at, occurrences, escalated
		FROM alert_snapshots
		WHERE fired_at >= ?
		ORDER BY fired_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, &StoreError{Op: "alert_history", Err: err}
	}
	defer rows.Close()

	var out []alerting.Alert
	for rows.Next() {
		var (
			a           alerting.Alert
			severity    string
			contextJSON string
			resolvedAt  sql.NullTime
		)
		if err := rows.Scan(
			&a.ID, &a.Rule, &a.Provider, &severity, &a.Message,
			&contextJSON, &a.FiredAt, &resolvedAt, &a.Occurrences, &a.Escalated,
		); err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		a.Severity = taxonomy.Severity(severity)
		if resolvedAt.Valid {
			a.ResolvedAt = resolvedAt.Time
		}
		if contextJSON != "" {
			_ = json.Unmarshal([]byte(contextJSON), &a.Context)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "alert_history", Err: err}
	}
	return out, nil
}

// Prune deletes rows past the retention window.
func (s *Store) Prune(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-s.config.Retention)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM metric_snapshots WHERE taken_at < ?`, cutoff); err != nil {
		return &StoreError{Op: "prune_metrics", Err: err}
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM alert_snapshots WHERE fired_at < ?`, cutoff); err != nil {
		return &StoreError{Op: "prune_alerts", Err: err}
	}
	return nil
}
