// Package prometheus exposes shelfauth metrics through
// github.com/prometheus/client_golang.
//
// [Exporter] is a prometheus.Collector that reads
// [shelfauth.Engine.MetricsSnapshot] on every scrape. Counter names are
// shelfauth_*_total; the single histogram is
// shelfauth_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry. Callers pick the registry,
//     or use [Exporter.Handler] which owns a private one.
//   - Mutate engine state.
package prometheus
