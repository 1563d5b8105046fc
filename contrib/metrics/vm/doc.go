// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "splitdb":
//
//	collector := vm.New()
//	client, _ := splitdb.NewSQLClient("postgres", primary, replicas,
//	    splitdb.WithMetrics(collector),
//	)
//
// # Exposing Metrics
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or write them to a custom writer with WritePrometheus.
//
// # Metrics Provided
//
// Routing:
//   - {prefix}_route_total{kind,target} - Counter of routing decisions
//   - {prefix}_primary_fallback_total - Counter of reads sent to the primary for lack of a replica
//   - {prefix}_pending_decisions - Gauge of decisions awaiting consumption
//   - {prefix}_decisions_evicted_total - Counter of decisions expired unconsumed
//
// Command execution:
//   - {prefix}_command_duration_seconds{kind,target} - Histogram of command latencies
//   - {prefix}_command_errors_total{kind,target} - Counter of failed commands
//
// Replica health:
//   - {prefix}_replica_healthy{replica} - Gauge (1=healthy, 0=unhealthy)
//   - {prefix}_replica_draining{replica} - Gauge (1=draining, 0=serving)
//   - {prefix}_probe_failures_total{replica} - Counter of failed probes
//   - {prefix}_probe_duration_seconds{replica} - Histogram of probe latencies
//
// ID generation:
//   - {prefix}_ids_generated_total - Counter of issued IDs
//   - {prefix}_clock_regressions_total{outcome} - Counter of clock regressions ("waited" or "failed")
//   - {prefix}_sequence_exhausted_total - Counter of milliseconds whose sequence ran out
//
// # Performance Notes
//
// Unlabeled metrics are pre-created with the NewXXX functions. Labeled
// series depend on runtime target names and use GetOrCreateXXX, which is a
// map lookup after the first call.
package vm
