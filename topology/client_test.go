package topology_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitdb"
	"github.com/arloliu/splitdb/test/testutil"
	"github.com/arloliu/splitdb/topology"
)

// A drain applied while the updates channel is too small for it must still
// reach the client's replica set.
func TestLocalOverflowedDrainReachesClient(t *testing.T) {
	local := topology.NewLocal(topology.WithBufferSize(1))
	defer local.Close()

	local.Apply(topology.DrainConfig{Drain: []string{"replica-0.db", "replica-1.db"}, Reason: "maintenance"})

	topo := testutil.NewSQLiteTopology(t, 3)
	client, err := splitdb.NewSQLClient(testutil.SQLiteDriver, topo.Primary, topo.Replicas,
		splitdb.WithoutHealthMonitor(),
		splitdb.WithTopologyWatcher(local),
	)
	require.NoError(t, err)
	defer client.Close()

	nodes := client.Router().Set().Nodes()
	assert.True(t, nodes[0].Draining())
	assert.True(t, nodes[1].Draining())
	assert.False(t, nodes[2].Draining())

	served := make(map[string]int)
	for range 6 {
		var name string
		require.NoError(t, client.QueryRowContext(t.Context(), "SELECT name FROM whoami").Scan(&name))
		served[name]++
	}
	assert.Equal(t, map[string]int{"replica-2": 6}, served)

	// A burst larger than the buffer while the client is consuming.
	local.Apply(topology.DrainConfig{})
	_ = local.SetDrain(t.Context(), "replica-2.db", true, "vacuum")

	require.Eventually(t, func() bool {
		return !nodes[0].Draining() && !nodes[1].Draining() && nodes[2].Draining()
	}, 2*time.Second, 10*time.Millisecond)
}
