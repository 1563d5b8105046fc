package integration_test

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitdb/test/testutil"
)

// sharedServer is the PostgreSQL server used by all integration tests.
var sharedServer *testutil.PostgresServer

var dbCounter atomic.Int64

// TestMain starts one PostgreSQL container for the whole suite.
// Each test creates its own databases to stay isolated.
func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Short() {
		return
	}

	if os.Getenv("SKIP_INTEGRATION_TESTS") == "1" {
		fmt.Println("Skipping integration tests (SKIP_INTEGRATION_TESTS=1)")

		return
	}

	ctx := context.Background()

	fmt.Println("Starting shared PostgreSQL server for integration tests...")
	srv, err := testutil.StartPostgres(ctx, nil)
	if err != nil {
		fmt.Printf("Failed to start PostgreSQL: %v\n", err)

		return
	}
	sharedServer = srv

	code := m.Run()

	fmt.Println("Cleaning up shared PostgreSQL server...")
	_ = sharedServer.Terminate(ctx)

	os.Exit(code)
}

// pgTopology is a primary and replicas hosted as databases on the shared server.
type pgTopology struct {
	Primary    string
	Replicas   []string
	PrimaryDB  string
	ReplicaDBs []string
}

// newTopology creates a primary and n replica databases.
//
// Every database gets whoami(name) naming it and an empty events table.
func newTopology(t *testing.T, replicas int) pgTopology {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if sharedServer == nil {
		t.Skip("PostgreSQL not available (run with -short=false and Docker)")
	}

	prefix := fmt.Sprintf("it%d_%s", dbCounter.Add(1), sanitize(t.Name()))

	var topo pgTopology
	topo.PrimaryDB = prefix + "_primary"
	topo.Primary = createSeeded(t, topo.PrimaryDB, "primary")
	for i := range replicas {
		name := fmt.Sprintf("%s_replica%d", prefix, i)
		topo.ReplicaDBs = append(topo.ReplicaDBs, name)
		topo.Replicas = append(topo.Replicas, createSeeded(t, name, fmt.Sprintf("replica-%d", i)))
	}

	return topo
}

func createSeeded(t *testing.T, database, label string) string {
	t.Helper()

	ctx := context.Background()

	dsn, err := sharedServer.CreateDatabase(ctx, database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sharedServer.DropDatabase(context.Background(), database) })

	db, err := sql.Open(testutil.PostgresDriver, dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		"CREATE TABLE whoami (name TEXT NOT NULL)",
		"CREATE TABLE events (id BIGINT PRIMARY KEY, payload TEXT)",
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	_, err = db.ExecContext(ctx, "INSERT INTO whoami (name) VALUES ($1)", label)
	require.NoError(t, err)

	return dsn
}

// countEvents counts rows in events on the database at dsn.
func countEvents(t *testing.T, dsn string) int {
	t.Helper()

	db, err := sql.Open(testutil.PostgresDriver, dsn)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM events").Scan(&n))

	return n
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 24 {
			break
		}
	}

	return b.String()
}
