// Package metrics provides internal metrics utilities for splitdb.
package metrics

import "github.com/arloliu/splitdb/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns collector, or a NopMetrics when collector is nil.
func OrNop(collector types.MetricsCollector) types.MetricsCollector {
	if collector == nil {
		return NewNopMetrics()
	}

	return collector
}

// ----------------------
// Routing
// ----------------------

// IncRouteTotal discards the metric.
func (m *NopMetrics) IncRouteTotal(_ types.Kind, _ string) {}

// IncPrimaryFallback discards the metric.
func (m *NopMetrics) IncPrimaryFallback() {}

// SetPendingDecisions discards the metric.
func (m *NopMetrics) SetPendingDecisions(_ int) {}

// IncDecisionEvicted discards the metric.
func (m *NopMetrics) IncDecisionEvicted() {}

// ----------------------
// Command Execution
// ----------------------

// ObserveCommandDuration discards the metric.
func (m *NopMetrics) ObserveCommandDuration(_ types.Kind, _ string, _ float64) {}

// IncCommandError discards the metric.
func (m *NopMetrics) IncCommandError(_ types.Kind, _ string) {}

// ----------------------
// Replica Health
// ----------------------

// SetReplicaHealthy discards the metric.
func (m *NopMetrics) SetReplicaHealthy(_ string, _ bool) {}

// IncProbeFailure discards the metric.
func (m *NopMetrics) IncProbeFailure(_ string) {}

// ObserveProbeDuration discards the metric.
func (m *NopMetrics) ObserveProbeDuration(_ string, _ float64) {}

// SetReplicaDraining discards the metric.
func (m *NopMetrics) SetReplicaDraining(_ string, _ bool) {}

// ----------------------
// ID Generation
// ----------------------

// IncIDGenerated discards the metric.
func (m *NopMetrics) IncIDGenerated() {}

// IncClockRegression discards the metric.
func (m *NopMetrics) IncClockRegression(_ bool) {}

// IncSequenceExhausted discards the metric.
func (m *NopMetrics) IncSequenceExhausted() {}
