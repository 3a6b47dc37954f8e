// Package snapshot persists periodic metrics and alert snapshots to
// SQLite.
//
// The realtime collector keeps 24 hours of per-minute history in memory;
// anything older survives only here. The aggregation cron calls the
// Archiver on its cadence, which writes one metric row per provider plus
// the resolved-alert history, and prunes rows past retention.
package snapshot
