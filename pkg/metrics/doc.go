// Package metrics collects generation telemetry at three horizons.
//
// Prometheus vectors expose counters, gauges, and histograms for scraping.
// A realtime layer keeps per-provider counters, bounded latency samples for
// percentiles, and per-kind error counts for the dashboard endpoints. A
// historical layer maintains per-minute buckets for the trailing 24 hours
// and exponentially weighted baselines used for anomaly detection.
//
// Recording is asynchronous: outcomes are sent over a buffered channel and
// folded in by a single background goroutine, so the request path never
// blocks on metric bookkeeping. When the channel is full the outcome is
// dropped and counted.
package metrics
