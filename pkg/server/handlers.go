package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/health"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/snapshot"
)

// healthSummary is the /health/detailed payload.
type healthSummary struct {
	Status    health.Status                `json:"status"`
	CheckedAt time.Time                    `json:"checked_at"`
	Providers map[string]health.Evaluation `json:"providers"`
}

// handleHealth serves GET /health: process liveness only.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealthDetailed serves GET /health/detailed.
//
// Status codes encode the aggregate verdict: 200 when every provider is
// healthy, 206 when the fleet is degraded but at least one provider can
// serve, 503 when nothing can.
func (s *Server) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	evals := s.health.EvaluateAll()
	writeJSON(w, healthStatusCode(evals), healthSummary{
		Status:    aggregateStatus(evals),
		CheckedAt: time.Now(),
		Providers: evals,
	})
}

// handleHealthProvider serves GET /health/provider/{name}.
func (s *Server) handleHealthProvider(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	eval, ok := s.health.Evaluate(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_provider", "no provider named "+name)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// handleHealthCheck serves POST /health/check: an on-demand evaluation,
// outside the probe schedule. An optional body {"providers": [...]} limits
// the check to the named providers; an empty body checks everything.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Providers []string `json:"providers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON: "+err.Error())
		return
	}

	var evals map[string]health.Evaluation
	if len(body.Providers) == 0 {
		evals = s.health.EvaluateAll()
	} else {
		evals = make(map[string]health.Evaluation, len(body.Providers))
		for _, name := range body.Providers {
			eval, ok := s.health.Evaluate(name)
			if !ok {
				writeError(w, http.StatusNotFound, "unknown_provider", "no provider named "+name)
				return
			}
			evals[name] = eval
		}
	}

	writeJSON(w, http.StatusOK, healthSummary{
		Status:    aggregateStatus(evals),
		CheckedAt: time.Now(),
		Providers: evals,
	})
}

// aggregateStatus folds per-provider verdicts into one. Any serving
// provider keeps the gateway out of unhealthy; the fallback handles the
// rest.
func aggregateStatus(evals map[string]health.Evaluation) health.Status {
	if len(evals) == 0 {
		return health.StatusUnhealthy
	}

	allHealthy := true
	anyServing := false
	for _, e := range evals {
		if e.Status != health.StatusHealthy {
			allHealthy = false
		}
		if e.Status != health.StatusUnhealthy {
			anyServing = true
		}
	}

	switch {
	case allHealthy:
		return health.StatusHealthy
	case anyServing:
		return health.StatusDegraded
	default:
		return health.StatusUnhealthy
	}
}

func healthStatusCode(evals map[string]health.Evaluation) int {
	switch aggregateStatus(evals) {
	case health.StatusHealthy:
		return http.StatusOK
	case health.StatusDegraded:
		return http.StatusPartialContent
	default:
		return http.StatusServiceUnavailable
	}
}

// handleDashboard serves GET /monitoring/dashboard: the full report the
// collector builds for operators.
func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Report())
}

// realtimeEntry pairs live stats with the circuit state.
type realtimeEntry struct {
	metrics.ProviderStats
	CircuitState string `json:"circuit_state"`
}

// handleRealtime serves GET /monitoring/realtime: per-provider live stats
// plus circuit state, for dashboards that poll.
func (s *Server) handleRealtime(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]realtimeEntry)
	for _, name := range s.gateway.Names() {
		entry := realtimeEntry{CircuitState: "closed"}
		if stats, ok := s.metrics.Stats(name); ok {
			entry.ProviderStats = stats
		} else {
			entry.ProviderStats = metrics.ProviderStats{Provider: name, SuccessRate: 1}
		}
		if managed, ok := s.gateway.Entry(name); ok {
			entry.CircuitState = managed.Breaker.Snapshot().State
		}
		out[name] = entry
	}
	writeJSON(w, http.StatusOK, out)
}

// performanceEntry is one provider's trailing-window view.
type performanceEntry struct {
	Provider string              `json:"provider"`
	Last5m   metrics.WindowStats `json:"last_5m"`
	LastHour metrics.WindowStats `json:"last_hour"`
}

// windowView is one provider's stats over a caller-chosen window.
type windowView struct {
	Provider  string              `json:"provider"`
	TimeRange string              `json:"time_range"`
	Stats     metrics.WindowStats `json:"stats"`
}

// handlePerformance serves GET /monitoring/performance. Without
// parameters it reports the fixed 5m/1h pair; ?timeRange=30m selects a
// single custom window instead.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("timeRange"); raw != "" {
		span, err := time.ParseDuration(raw)
		if err != nil || span <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_time_range",
				"timeRange must be a positive duration such as 30m or 1h")
			return
		}
		out := make(map[string]windowView)
		for _, name := range s.gateway.Names() {
			view := windowView{Provider: name, TimeRange: span.String()}
			if ws, ok := s.metrics.Window(name, span); ok {
				view.Stats = ws
			}
			out[name] = view
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	out := make(map[string]performanceEntry)
	for _, name := range s.gateway.Names() {
		entry := performanceEntry{Provider: name}
		if w5, ok := s.metrics.Window(name, 5*time.Minute); ok {
			entry.Last5m = w5
		}
		if wh, ok := s.metrics.Window(name, time.Hour); ok {
			entry.LastHour = wh
		}
		out[name] = entry
	}
	writeJSON(w, http.StatusOK, out)
}

// alertsView is the /monitoring/alerts payload.
type alertsView struct {
	Active  []alerting.Alert `json:"active"`
	History []alerting.Alert `json:"history"`
}

// handleAlerts serves GET /monitoring/alerts: currently firing alerts plus
// recent resolved history. ?severity and ?provider filter both lists;
// ?limit caps the history length (default 100).
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	severity := q.Get("severity")
	provider := q.Get("provider")

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, alertsView{
		Active:  filterAlerts(s.alerts.Active(), severity, provider),
		History: filterAlerts(s.alerts.History(limit), severity, provider),
	})
}

func filterAlerts(alerts []alerting.Alert, severity, provider string) []alerting.Alert {
	if severity == "" && provider == "" {
		return alerts
	}
	out := make([]alerting.Alert, 0, len(alerts))
	for _, a := range alerts {
		if severity != "" && string(a.Severity) != severity {
			continue
		}
		if provider != "" && a.Provider != provider {
			continue
		}
		out = append(out, a)
	}
	return out
}

// providerHistoryView is the /monitoring/history/provider/{name} payload.
type providerHistoryView struct {
	Provider string               `json:"provider"`
	Since    time.Time            `json:"since"`
	Samples  []snapshot.MetricRow `json:"samples"`
}

// handleProviderHistory serves GET /monitoring/history/provider/{name}:
// persisted metric snapshots, surviving restarts. ?since selects the
// lookback window (default 24h).
func (s *Server) handleProviderHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	lookback := 24 * time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		span, err := time.ParseDuration(raw)
		if err != nil || span <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_since",
				"since must be a positive duration such as 6h or 24h")
			return
		}
		lookback = span
	}
	since := time.Now().Add(-lookback)

	rows, err := s.store.ProviderHistory(r.Context(), name, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, providerHistoryView{
		Provider: name,
		Since:    since,
		Samples:  rows,
	})
}

// handleAlertHistory serves GET /monitoring/history/alerts: persisted
// alert snapshots. ?since (default 24h) and ?limit (default 100) bound
// the query.
func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lookback := 24 * time.Hour
	if raw := q.Get("since"); raw != "" {
		span, err := time.ParseDuration(raw)
		if err != nil || span <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_since",
				"since must be a positive duration such as 6h or 24h")
			return
		}
		lookback = span
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := s.store.AlertHistory(r.Context(), time.Now().Add(-lookback), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}
