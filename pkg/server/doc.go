// Package server provides the HTTP surface of the generation gateway.
//
// The server exposes four groups of endpoints:
//
//   - POST /api/parse-dream: the generation endpoint. Accepts a dream
//     text and returns a success/data/error envelope whose data is a
//     schema-valid artifact, served by a provider or by the emergency
//     fallback.
//   - /health, /health/detailed, /health/provider/{name}, and
//     POST /health/check: liveness and per-provider health verdicts.
//   - /monitoring/dashboard, /monitoring/realtime,
//     /monitoring/performance, /monitoring/alerts: operator dashboards
//     backed by the metrics collector and the alerting manager, plus
//     /monitoring/history/... for persisted snapshots when a snapshot
//     store is configured.
//   - /metrics: the Prometheus scrape endpoint.
//
// Requests pass through a middleware chain of recovery, logging, request
// ID stamping, CORS, and a per-request deadline, outermost first. The
// server also owns the background schedule: metric aggregation pruning,
// alert rule evaluation, and snapshot archiving run on a shared cron.
package server
