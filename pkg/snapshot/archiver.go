package snapshot

import (
	"context"
	"log/slog"
	"time"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/metrics"
)

// archiveTimeout bounds one archival run.
const archiveTimeout = 30 * time.Second

// Archiver snapshots the realtime state into the store. The aggregation
// cron calls Run on its cadence.
type Archiver struct {
	store     *Store
	collector *metrics.Collector
	alerts    *alerting.Manager
	logger    *slog.Logger
}

// NewArchiver creates an archiver.
func NewArchiver(store *Store, collector *metrics.Collector, alerts *alerting.Manager) *Archiver {
	return &Archiver{
		store:     store,
		collector: collector,
		alerts:    alerts,
		logger:    slog.Default().With("component", "snapshot.archiver"),
	}
}

// Run archives the current metrics report and alert state, then prunes
// expired rows. Errors are logged, not returned; a failed archive must not
// take the cron down.
func (a *Archiver) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	report := a.collector.Report()
	if len(report.Providers) > 0 {
		if err := a.store.SaveReport(ctx, report); err != nil {
			a.logger.Error("metric snapshot failed", "error", err)
		}
	}

	// Active alerts are archived too so a restart does not lose the ones
	// that never resolved; re-saves update in place.
	all := append(a.alerts.Active(), a.alerts.History(0)...)
	if len(all) > 0 {
		if err := a.store.SaveAlerts(ctx, all); err != nil {
			a.logger.Error("alert snapshot failed", "error", err)
		}
	}

	if err := a.store.Prune(ctx, time.Now()); err != nil {
		a.logger.Error("snapshot prune failed", "error", err)
	}
}
