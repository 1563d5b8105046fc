package integration_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitdb"
	"github.com/arloliu/splitdb/idgen"
	"github.com/arloliu/splitdb/test/testutil"
	"github.com/arloliu/splitdb/types"
)

func newClient(t *testing.T, topo pgTopology, opts ...splitdb.Option) *splitdb.SQLClient {
	t.Helper()

	client, err := splitdb.NewSQLClient(testutil.PostgresDriver, topo.Primary, topo.Replicas, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func whoami(t *testing.T, ctx context.Context, client *splitdb.SQLClient) string {
	t.Helper()

	var name string
	require.NoError(t, client.QueryRowContext(ctx, "SELECT name FROM whoami").Scan(&name))

	return name
}

func TestPostgresReadsRotateAcrossReplicas(t *testing.T) {
	topo := newTopology(t, 3)
	client := newClient(t, topo, splitdb.WithoutHealthMonitor())
	ctx := t.Context()

	var got []string
	for range 6 {
		got = append(got, whoami(t, ctx, client))
	}

	assert.Equal(t, []string{"replica-0", "replica-1", "replica-2", "replica-0", "replica-1", "replica-2"}, got)
}

func TestPostgresWritesLandOnPrimary(t *testing.T) {
	topo := newTopology(t, 2)
	client := newClient(t, topo, splitdb.WithoutHealthMonitor())
	ctx := t.Context()

	gen, err := idgen.New(1, 1)
	require.NoError(t, err)

	for range 5 {
		_, err := client.ExecContext(ctx, "INSERT INTO events (id, payload) VALUES ($1, $2)", gen.MustNextID(), "x")
		require.NoError(t, err)
	}

	// Lowercase and leading whitespace are writes too unless the first word is SELECT.
	_, err = client.ExecContext(ctx, "  update events SET payload = 'y'")
	require.NoError(t, err)

	assert.Equal(t, 5, countEvents(t, topo.Primary))
	for _, dsn := range topo.Replicas {
		assert.Zero(t, countEvents(t, dsn))
	}
}

func TestPostgresForcePrimaryRead(t *testing.T) {
	topo := newTopology(t, 2)
	client := newClient(t, topo, splitdb.WithoutHealthMonitor())

	ctx := splitdb.ContextWithForcePrimary(t.Context(), true)
	assert.Equal(t, "primary", whoami(t, ctx, client))
}

func TestPostgresTransactionOnPrimary(t *testing.T) {
	topo := newTopology(t, 1)
	client := newClient(t, topo, splitdb.WithoutHealthMonitor())
	ctx := t.Context()

	tx, err := client.BeginTx(ctx, nil)
	require.NoError(t, err)

	var name string
	require.NoError(t, tx.QueryRowContext(ctx, "SELECT name FROM whoami").Scan(&name))
	assert.Equal(t, "primary", name)

	_, err = tx.ExecContext(ctx, "INSERT INTO events (id, payload) VALUES (1, 'tx')")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, 1, countEvents(t, topo.Primary))
}

func TestPostgresNoRowsIsNotAnError(t *testing.T) {
	topo := newTopology(t, 1)
	collector := testutil.NewTestMetricsCollector()
	client := newClient(t, topo, splitdb.WithoutHealthMonitor(), splitdb.WithMetrics(collector))

	var payload string
	err := client.QueryRowContext(t.Context(), "SELECT payload FROM events WHERE id = $1", 42).Scan(&payload)
	require.ErrorIs(t, err, sql.ErrNoRows)

	_, err = client.ExecContext(t.Context(), "INSERT INTO missing_table VALUES (1)")
	require.Error(t, err)

	assert.Equal(t, int64(1), collector.GetCommandErrors(types.KindWrite, client.Router().Set().Primary().Name))
}

func TestPostgresPrepareOpen(t *testing.T) {
	topo := newTopology(t, 2)
	client := newClient(t, topo, splitdb.WithoutHealthMonitor())
	ctx := t.Context()

	token, decision, err := client.Prepare(ctx, "SELECT name FROM whoami")
	require.NoError(t, err)
	assert.Equal(t, types.KindRead, decision.Kind)

	db, consumed, err := client.Open(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, decision.Target, consumed.Target)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM whoami").Scan(&name))
	assert.Equal(t, "replica-0", name)

	_, _, err = client.Open(ctx, token)
	require.ErrorIs(t, err, types.ErrDecisionNotFound)
}

func TestPostgresConcurrentMixedTraffic(t *testing.T) {
	topo := newTopology(t, 2)
	client := newClient(t, topo, splitdb.WithoutHealthMonitor())
	ctx := t.Context()

	gen, err := idgen.New(0, 1)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range 20 {
				if _, err := client.ExecContext(ctx, "INSERT INTO events (id, payload) VALUES ($1, 'c')", gen.MustNextID()); err != nil {
					t.Errorf("insert: %v", err)
					return
				}

				var name string
				if err := client.QueryRowContext(ctx, "SELECT name FROM whoami").Scan(&name); err != nil {
					t.Errorf("read: %v", err)
					return
				}
				if name == "primary" {
					t.Errorf("read served by primary with healthy replicas")
					return
				}
			}
		})
	}
	wg.Wait()

	assert.Equal(t, workers*20, countEvents(t, topo.Primary))
	assert.Zero(t, client.Correlator().Pending())
}
