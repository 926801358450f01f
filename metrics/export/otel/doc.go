// Package otel publishes shelfauth metrics as OpenTelemetry observable
// instruments.
//
// Engine counters that split one event stream are folded into a single
// instrument with an attribute: login and refresh by "outcome", cache
// lookups by "result", catalog upstream failures by "op". The authenticate
// latency histogram is one cumulative gauge keyed by "le". A single callback
// reads [shelfauth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
