// Package alerting raises, deduplicates, escalates, and resolves
// operational alerts about provider behavior.
//
// Alerts are keyed by rule and provider. A repeat firing inside the
// suppression window increments the occurrence count without redelivering;
// sustained repetition inside the escalation window bumps the severity and
// delivers once more. Delivery runs on a background worker so firing never
// blocks the request path, and a per-provider hourly cap keeps a flapping
// provider from drowning the channels.
package alerting
