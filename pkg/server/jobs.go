package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/snapshot"
)

// jobs owns the background schedule: minute-bucket pruning, alert rule
// evaluation, and snapshot archiving share one cron.
type jobs struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// newJobs wires the scheduled work. interval drives pruning and rule
// evaluation; the archiver, when present, runs once a minute.
func newJobs(interval time.Duration, collector *metrics.Collector, evaluator *alerting.Evaluator, archiver *snapshot.Archiver) (*jobs, error) {
	j := &jobs{
		cron:   cron.New(),
		logger: slog.Default().With("component", "server.jobs"),
	}

	every := fmt.Sprintf("@every %s", interval)

	if collector != nil {
		if _, err := j.cron.AddFunc(every, func() {
			collector.Prune(time.Now())
		}); err != nil {
			return nil, fmt.Errorf("schedule metrics pruning: %w", err)
		}
	}
	if evaluator != nil {
		if _, err := j.cron.AddFunc(every, evaluator.Run); err != nil {
			return nil, fmt.Errorf("schedule alert evaluation: %w", err)
		}
	}
	if archiver != nil {
		if _, err := j.cron.AddFunc("@every 1m", archiver.Run); err != nil {
			return nil, fmt.Errorf("schedule snapshot archiving: %w", err)
		}
	}

	return j, nil
}

// start launches the schedule.
func (j *jobs) start() {
	j.cron.Start()
	j.logger.Info("background jobs started")
}

// stop halts the schedule and waits for running jobs to finish.
func (j *jobs) stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("background jobs stopped")
}
