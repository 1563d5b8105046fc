package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/splitdb/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "splitdb"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// Unlabeled metrics are pre-created at initialization. Per-target and
// per-replica series are created on first use and cached by the set.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	// Routing
	primaryFallbacks *metrics.Counter
	pendingDecisions atomic.Int64
	decisionsEvicted *metrics.Counter

	// ID generation
	idsGenerated      *metrics.Counter
	regressionsWaited *metrics.Counter
	regressionsFailed *metrics.Counter
	sequenceExhausted *metrics.Counter
}

var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally
// unless WithMetricsSet is given.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("orders"))
//	client, _ := splitdb.NewSQLClient("postgres", primary, replicas,
//	    splitdb.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "splitdb",
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates the unlabeled metrics with the configured prefix.
func (c *Collector) initMetrics() {
	p := c.prefix

	c.primaryFallbacks = c.set.NewCounter(p + "_primary_fallback_total")
	c.decisionsEvicted = c.set.NewCounter(p + "_decisions_evicted_total")
	c.set.NewGauge(p+"_pending_decisions", func() float64 {
		return float64(c.pendingDecisions.Load())
	})

	c.idsGenerated = c.set.NewCounter(p + "_ids_generated_total")
	c.regressionsWaited = c.set.NewCounter(fmt.Sprintf(`%s_clock_regressions_total{outcome="waited"}`, p))
	c.regressionsFailed = c.set.NewCounter(fmt.Sprintf(`%s_clock_regressions_total{outcome="failed"}`, p))
	c.sequenceExhausted = c.set.NewCounter(p + "_sequence_exhausted_total")
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

func (c *Collector) kindTarget(name string, kind types.Kind, target string) string {
	return fmt.Sprintf(`%s_%s{kind=%q,target=%q}`, c.prefix, name, kind.String(), target)
}

func (c *Collector) replica(name, replica string) string {
	return fmt.Sprintf(`%s_%s{replica=%q}`, c.prefix, name, replica)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}

	return 0
}

// ----------------------
// Routing
// ----------------------

// IncRouteTotal increments the routing decision counter.
func (c *Collector) IncRouteTotal(kind types.Kind, target string) {
	c.set.GetOrCreateCounter(c.kindTarget("route_total", kind, target)).Inc()
}

// IncPrimaryFallback increments the primary fallback counter.
func (c *Collector) IncPrimaryFallback() {
	c.primaryFallbacks.Inc()
}

// SetPendingDecisions sets the pending decisions gauge.
func (c *Collector) SetPendingDecisions(n int) {
	c.pendingDecisions.Store(int64(n))
}

// IncDecisionEvicted increments the evicted decision counter.
func (c *Collector) IncDecisionEvicted() {
	c.decisionsEvicted.Inc()
}

// ----------------------
// Command Execution
// ----------------------

// ObserveCommandDuration records a command duration in seconds.
func (c *Collector) ObserveCommandDuration(kind types.Kind, target string, seconds float64) {
	c.set.GetOrCreateHistogram(c.kindTarget("command_duration_seconds", kind, target)).Update(seconds)
}

// IncCommandError increments the command error counter.
func (c *Collector) IncCommandError(kind types.Kind, target string) {
	c.set.GetOrCreateCounter(c.kindTarget("command_errors_total", kind, target)).Inc()
}

// ----------------------
// Replica Health
// ----------------------

// SetReplicaHealthy sets the replica health gauge.
func (c *Collector) SetReplicaHealthy(replica string, healthy bool) {
	c.set.GetOrCreateGauge(c.replica("replica_healthy", replica), nil).Set(boolGauge(healthy))
}

// IncProbeFailure increments the probe failure counter.
func (c *Collector) IncProbeFailure(replica string) {
	c.set.GetOrCreateCounter(c.replica("probe_failures_total", replica)).Inc()
}

// ObserveProbeDuration records a probe duration in seconds.
func (c *Collector) ObserveProbeDuration(replica string, seconds float64) {
	c.set.GetOrCreateHistogram(c.replica("probe_duration_seconds", replica)).Update(seconds)
}

// SetReplicaDraining sets the replica drain gauge.
func (c *Collector) SetReplicaDraining(replica string, draining bool) {
	c.set.GetOrCreateGauge(c.replica("replica_draining", replica), nil).Set(boolGauge(draining))
}

// ----------------------
// ID Generation
// ----------------------

// IncIDGenerated increments the issued ID counter.
func (c *Collector) IncIDGenerated() {
	c.idsGenerated.Inc()
}

// IncClockRegression increments the clock regression counter.
func (c *Collector) IncClockRegression(waited bool) {
	if waited {
		c.regressionsWaited.Inc()
	} else {
		c.regressionsFailed.Inc()
	}
}

// IncSequenceExhausted increments the sequence exhaustion counter.
func (c *Collector) IncSequenceExhausted() {
	c.sequenceExhausted.Inc()
}
