// Package topology provides replica drain signalling.
//
// A drained replica stays healthy and keeps being probed, but the router
// stops sending reads to it. Draining is how operators take a replica out of
// read rotation for maintenance (VACUUM FULL, minor upgrades, re-seeding from
// a fresh base backup) without restarting clients.
//
// # Overview
//
// The package provides implementations of the [splitdb.TopologyWatcher] and
// [splitdb.TopologyOperator] interfaces:
//   - [splitdb.TopologyWatcher]: emits a [splitdb.TopologyUpdate] for every
//     replica whose drain state changes.
//   - [splitdb.TopologyOperator]: drains or restores a replica
//     programmatically.
//
// # NATS Topology
//
// [NATS] watches a NATS KV key and broadcasts the drain list to every
// connected client:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "splitdb-config")
//
//	watcher, _ := topology.NewNATS(kv, topology.WithKey("orders.topology.drain"))
//
//	client, _ := splitdb.NewSQLClient("postgres", primaryDSN, replicaDSNs,
//	    splitdb.WithTopologyWatcher(watcher),
//	)
//
// [NATS.SetDrain] edits the same key with optimistic concurrency, so an admin
// tool can drain one replica without clobbering a concurrent edit.
//
// # Drain Configuration Format
//
// The KV value is a JSON object listing replicas by display name or address:
//
//	{
//	    "drain": ["replica2:5432/app"],
//	    "reason": "VACUUM FULL"
//	}
//
// Replicas that leave the list are restored. Deleting the key, or storing a
// value that is not valid JSON, restores every replica.
//
// There is no automatic expiry: maintenance ends when an operator removes
// the replica from the list.
//
// # Local Topology
//
// [Local] is an in-memory watcher and operator for tests and single-process
// deployments:
//
//	local := topology.NewLocal()
//	client, _ := splitdb.NewSQLClient("sqlite3", primary, replicas,
//	    splitdb.WithTopologyWatcher(local),
//	)
//
//	_ = local.SetDrain(ctx, "replica-1", true, "reindex")
//	// Later...
//	_ = local.SetDrain(ctx, "replica-1", false, "")
package topology
