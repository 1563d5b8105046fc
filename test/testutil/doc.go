// Package testutil provides test doubles and fixtures for splitdb tests.
//
// # Test Doubles
//
//   - [TestMetricsCollector]: records every MetricsCollector call for assertions
//   - [RecordingLogger]: captures log records with their fields
//
// # Fixtures
//
//   - [NewSQLiteTopology]: a primary and replicas as SQLite files, each with a
//     whoami table naming the database
//   - [StartNATSServer], [StartEmbeddedNATS], [NewKV]: an in-process NATS
//     server with JetStream for drain watcher tests
//   - [StartPostgres]: a PostgreSQL container (requires Docker) hosting one
//     database per logical target
//
// Example:
//
//	topo := testutil.NewSQLiteTopology(t, 2)
//	client, _ := splitdb.NewSQLClient(testutil.SQLiteDriver, topo.Primary, topo.Replicas)
//
//	var name string
//	_ = client.QueryRow("SELECT name FROM whoami").Scan(&name) // "replica-0"
package testutil
