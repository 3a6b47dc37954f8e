// Package health evaluates provider health from two directions.
//
// Passive evaluation reads the traffic the gateway already generates: the
// metrics collector's success rates, latency averages, and consecutive
// failure counts, plus the circuit breaker state. Active probing sends a
// lightweight request on a fixed cadence so a provider that receives no
// traffic still gets a verdict.
//
// Health is advisory: it feeds provider scoring and the health endpoints
// but never blocks dispatch on its own. The circuit breaker, not the health
// monitor, is the mechanism that stops calls.
package health
