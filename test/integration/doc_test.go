// Package integration_test runs splitdb against a real PostgreSQL server.
//
// A single postgres container (testcontainers-go) hosts one database per
// logical target, so routing, probing and draining are exercised through
// lib/pq without a replication setup. Drain tests also start an embedded
// NATS server.
//
// The suite needs Docker and is skipped with -short or
// SKIP_INTEGRATION_TESTS=1:
//
//	go test ./test/integration/...
package integration_test
