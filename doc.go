// Package splitdb provides read/write splitting over a primary database and
// its read replicas, plus Snowflake-style ID generation for records created
// concurrently across many application instances.
//
// # Key Features
//
//   - Read/Write Splitting: SELECT statements go to replicas, everything else
//     to the primary
//   - Round-Robin Reads: reads rotate over replicas that are healthy and not
//     draining, and fall back to the primary when none are
//   - Health Monitoring: replicas are probed in the background (every 30s by
//     default) and leave rotation while probes fail
//   - Drain Mode: operators take replicas out of rotation through
//     topology.Local or a NATS KV key (topology.NATS)
//   - Decision Correlation: the decision made when a command is prepared is
//     handed, exactly once, to the step that opens its connection, keyed by a
//     per-operation Token
//   - ID Generation: see package idgen
//
// # Basic Usage
//
//	client, err := splitdb.NewSQLClient("postgres",
//	    "postgres://app@primary:5432/app",
//	    []string{"postgres://app@replica1:5432/app", "postgres://app@replica2:5432/app"},
//	    splitdb.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Runs on a replica.
//	rows, err := client.QueryContext(ctx, "SELECT id, name FROM users")
//
//	// Runs on the primary.
//	_, err = client.ExecContext(ctx, "UPDATE users SET name = $1 WHERE id = $2", name, id)
//
//	// Read-your-writes: keep this read on the primary.
//	row := client.QueryRowContext(splitdb.ContextWithForcePrimary(ctx, true),
//	    "SELECT name FROM users WHERE id = $1", id)
//
// # Prepare and Open
//
// Frameworks that classify a command in one hook and open the connection in
// another use the two steps directly. The token ties them together even
// when many operations interleave:
//
//	token, decision, err := client.Prepare(ctx, query)
//	// ... later, possibly in another layer ...
//	db, decision, err := client.Open(ctx, token)
//
// A decision is consumed at most once. Decisions that are never opened
// expire after the decision TTL (30s by default).
//
// # Routing Without a Client
//
// Router and Correlator work on addresses only and can sit in front of any
// connection layer:
//
//	router, err := splitdb.NewRouter(primaryDSN, replicaDSNs)
//	target := router.RouteForRead(false) // a replica, or the primary as fallback
//
// # Error Handling
//
// Sentinel and typed errors live in package types and are checked with
// errors.Is and errors.As:
//
//   - *types.ConfigurationError (types.ErrConfiguration): bad topology or
//     generator identity at construction time
//   - types.ErrSessionClosed: operation attempted on a closed client
//   - types.ErrDecisionNotFound: Open called for an unknown, consumed or
//     expired token
//   - types.ErrDuplicateToken: Prepare called twice with the same token
//
// No replica being available is not an error: reads go to the primary.
// Driver errors are returned unchanged.
//
// # Replication Lag
//
// splitdb does not measure replica lag. A read issued right after a write
// may not observe it unless it is forced to the primary.
package splitdb
