package testutil

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/splitdb/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertion in tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Routing
	RouteTotal map[string]int64 // key: "kind/target"

	// Command execution
	CommandErrors   map[string]int64 // key: "kind/target"
	CommandDuration map[string][]float64

	// Replica health
	ReplicaHealthy  map[string]bool
	ProbeFailures   map[string]int64
	ReplicaDraining map[string]bool

	// Atomic counters for quick access
	primaryFallbacks  atomic.Int64
	pendingDecisions  atomic.Int64
	decisionsEvicted  atomic.Int64
	idsGenerated      atomic.Int64
	regressionsWaited atomic.Int64
	regressionsFailed atomic.Int64
	sequenceExhausted atomic.Int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		RouteTotal:      make(map[string]int64),
		CommandErrors:   make(map[string]int64),
		CommandDuration: make(map[string][]float64),
		ReplicaHealthy:  make(map[string]bool),
		ProbeFailures:   make(map[string]int64),
		ReplicaDraining: make(map[string]bool),
	}
}

func routeKey(kind types.Kind, target string) string {
	return kind.String() + "/" + target
}

// IncRouteTotal records a routing decision.
func (m *TestMetricsCollector) IncRouteTotal(kind types.Kind, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RouteTotal[routeKey(kind, target)]++
}

// IncPrimaryFallback records a read that fell back to the primary.
func (m *TestMetricsCollector) IncPrimaryFallback() {
	m.primaryFallbacks.Add(1)
}

// SetPendingDecisions records the pending decision gauge.
func (m *TestMetricsCollector) SetPendingDecisions(n int) {
	m.pendingDecisions.Store(int64(n))
}

// IncDecisionEvicted records an evicted decision.
func (m *TestMetricsCollector) IncDecisionEvicted() {
	m.decisionsEvicted.Add(1)
}

// ObserveCommandDuration records a command duration.
func (m *TestMetricsCollector) ObserveCommandDuration(kind types.Kind, target string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := routeKey(kind, target)
	m.CommandDuration[key] = append(m.CommandDuration[key], seconds)
}

// IncCommandError records a command error.
func (m *TestMetricsCollector) IncCommandError(kind types.Kind, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandErrors[routeKey(kind, target)]++
}

// SetReplicaHealthy records the replica health gauge.
func (m *TestMetricsCollector) SetReplicaHealthy(replica string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicaHealthy[replica] = healthy
}

// IncProbeFailure records a failed probe.
func (m *TestMetricsCollector) IncProbeFailure(replica string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProbeFailures[replica]++
}

// ObserveProbeDuration discards the observation.
func (m *TestMetricsCollector) ObserveProbeDuration(_ string, _ float64) {}

// SetReplicaDraining records the replica drain gauge.
func (m *TestMetricsCollector) SetReplicaDraining(replica string, draining bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicaDraining[replica] = draining
}

// IncIDGenerated records an issued ID.
func (m *TestMetricsCollector) IncIDGenerated() {
	m.idsGenerated.Add(1)
}

// IncClockRegression records a clock regression.
func (m *TestMetricsCollector) IncClockRegression(waited bool) {
	if waited {
		m.regressionsWaited.Add(1)
	} else {
		m.regressionsFailed.Add(1)
	}
}

// IncSequenceExhausted records an exhausted millisecond.
func (m *TestMetricsCollector) IncSequenceExhausted() {
	m.sequenceExhausted.Add(1)
}

// GetRouteTotal returns the number of decisions for kind and target.
func (m *TestMetricsCollector) GetRouteTotal(kind types.Kind, target string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.RouteTotal[routeKey(kind, target)]
}

// GetCommandErrors returns the number of command errors for kind and target.
func (m *TestMetricsCollector) GetCommandErrors(kind types.Kind, target string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.CommandErrors[routeKey(kind, target)]
}

// GetReplicaHealthy returns the last recorded health of a replica.
func (m *TestMetricsCollector) GetReplicaHealthy(replica string) (healthy, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	healthy, ok = m.ReplicaHealthy[replica]

	return healthy, ok
}

// GetProbeFailures returns the number of failed probes for a replica.
func (m *TestMetricsCollector) GetProbeFailures(replica string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ProbeFailures[replica]
}

// GetReplicaDraining returns the last recorded drain state of a replica.
func (m *TestMetricsCollector) GetReplicaDraining(replica string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ReplicaDraining[replica]
}

// PrimaryFallbacks returns the number of reads that fell back to the primary.
func (m *TestMetricsCollector) PrimaryFallbacks() int64 { return m.primaryFallbacks.Load() }

// PendingDecisions returns the last pending decision gauge value.
func (m *TestMetricsCollector) PendingDecisions() int64 { return m.pendingDecisions.Load() }

// DecisionsEvicted returns the number of evicted decisions.
func (m *TestMetricsCollector) DecisionsEvicted() int64 { return m.decisionsEvicted.Load() }

// IDsGenerated returns the number of issued IDs.
func (m *TestMetricsCollector) IDsGenerated() int64 { return m.idsGenerated.Load() }

// RegressionsWaited returns the number of regressions that were waited out.
func (m *TestMetricsCollector) RegressionsWaited() int64 { return m.regressionsWaited.Load() }

// RegressionsFailed returns the number of regressions that failed generation.
func (m *TestMetricsCollector) RegressionsFailed() int64 { return m.regressionsFailed.Load() }

// SequenceExhausted returns the number of exhausted milliseconds.
func (m *TestMetricsCollector) SequenceExhausted() int64 { return m.sequenceExhausted.Load() }
