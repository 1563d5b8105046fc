package types

// MetricsCollector defines methods for collecting operational metrics.
//
// Target-scoped methods receive the credential-free target name for
// labeling. Implementations should be thread-safe as methods may be called
// concurrently.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/splitdb/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := splitdb.NewSQLClient("postgres", primary, replicas,
//	    splitdb.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Routing
	// ----------------------

	// IncRouteTotal increments the routing decision counter.
	IncRouteTotal(kind Kind, target string)

	// IncPrimaryFallback increments the counter of reads sent to the primary
	// because no replica was eligible.
	IncPrimaryFallback()

	// SetPendingDecisions sets the gauge of decisions awaiting consumption.
	SetPendingDecisions(n int)

	// IncDecisionEvicted increments the counter of decisions dropped
	// without being consumed.
	IncDecisionEvicted()

	// ----------------------
	// Command Execution
	// ----------------------

	// ObserveCommandDuration records a command duration in seconds.
	ObserveCommandDuration(kind Kind, target string, seconds float64)

	// IncCommandError increments the command error counter.
	IncCommandError(kind Kind, target string)

	// ----------------------
	// Replica Health
	// ----------------------

	// SetReplicaHealthy sets the replica health gauge (1=healthy, 0=unhealthy).
	SetReplicaHealthy(replica string, healthy bool)

	// IncProbeFailure increments the counter of failed health probes.
	IncProbeFailure(replica string)

	// ObserveProbeDuration records a probe duration in seconds.
	ObserveProbeDuration(replica string, seconds float64)

	// SetReplicaDraining sets the replica drain gauge (1=draining, 0=serving).
	SetReplicaDraining(replica string, draining bool)

	// ----------------------
	// ID Generation
	// ----------------------

	// IncIDGenerated increments the counter of issued IDs.
	IncIDGenerated()

	// IncClockRegression increments the counter of detected clock regressions.
	// waited is true when the regression was within tolerance and waited out.
	IncClockRegression(waited bool)

	// IncSequenceExhausted increments the counter of milliseconds whose
	// sequence space ran out.
	IncSequenceExhausted()
}
