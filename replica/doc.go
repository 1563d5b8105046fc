// Package replica tracks read replicas, their health, and the round-robin
// rotation reads are spread over.
//
// A Set holds the primary target and an ordered list of Nodes. Each Node
// carries two atomic flags: healthy, written by a HealthMonitor after each
// probe, and draining, written by a drain topology consumer. A node is
// eligible for reads only when it is healthy and not draining.
//
//	set, err := replica.NewSet(primaryDSN, []string{r1, r2, r3})
//	if err != nil {
//	    return err // *types.ConfigurationError
//	}
//
//	monitor := replica.NewHealthMonitor(set, replica.NewSQLProber("postgres"),
//	    replica.WithProbeInterval(10*time.Second),
//	)
//	if err := monitor.Start(ctx); err != nil {
//	    return err
//	}
//	defer monitor.Stop()
//
//	node, err := set.NextReplica()
//	if errors.Is(err, types.ErrNoHealthyReplica) {
//	    // use the primary
//	}
//
// # Probers
//
// SQLProber runs "SELECT 1" (or the query given to WithProbeQuery) over a
// private handle per replica. PingProber pings handles the caller already
// owns. ProbeFunc turns any function into a Prober, which is convenient in
// tests.
package replica
