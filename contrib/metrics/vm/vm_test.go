package vm

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitdb/types"
)

func newTestCollector(t *testing.T, opts ...Option) *Collector {
	t.Helper()

	// A private set keeps tests from colliding in the global registry.
	return New(append([]Option{WithMetricsSet(metrics.NewSet())}, opts...)...)
}

func scrape(c *Collector) string {
	var buf bytes.Buffer
	c.WritePrometheus(&buf)

	return buf.String()
}

func TestCollectorDefaults(t *testing.T) {
	c := newTestCollector(t)
	out := scrape(c)

	assert.Contains(t, out, "splitdb_primary_fallback_total 0")
	assert.Contains(t, out, "splitdb_pending_decisions 0")
	assert.Contains(t, out, "splitdb_ids_generated_total 0")
	assert.Contains(t, out, `splitdb_clock_regressions_total{outcome="waited"} 0`)
}

func TestCollectorPrefix(t *testing.T) {
	c := newTestCollector(t, WithPrefix("orders"))
	c.IncPrimaryFallback()

	out := scrape(c)
	assert.Contains(t, out, "orders_primary_fallback_total 1")
	assert.NotContains(t, out, "splitdb_")
}

func TestCollectorRouting(t *testing.T) {
	c := newTestCollector(t)

	c.IncRouteTotal(types.KindRead, "replica-0")
	c.IncRouteTotal(types.KindRead, "replica-0")
	c.IncRouteTotal(types.KindWrite, "primary")
	c.IncPrimaryFallback()
	c.SetPendingDecisions(7)
	c.IncDecisionEvicted()

	out := scrape(c)
	assert.Contains(t, out, `splitdb_route_total{kind="read",target="replica-0"} 2`)
	assert.Contains(t, out, `splitdb_route_total{kind="write",target="primary"} 1`)
	assert.Contains(t, out, "splitdb_primary_fallback_total 1")
	assert.Contains(t, out, "splitdb_pending_decisions 7")
	assert.Contains(t, out, "splitdb_decisions_evicted_total 1")
}

func TestCollectorCommands(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveCommandDuration(types.KindRead, "replica-1", 0.002)
	c.IncCommandError(types.KindWrite, "primary")

	out := scrape(c)
	assert.Contains(t, out, `splitdb_command_duration_seconds_count{kind="read",target="replica-1"} 1`)
	assert.Contains(t, out, `splitdb_command_errors_total{kind="write",target="primary"} 1`)
}

func TestCollectorReplicaHealth(t *testing.T) {
	c := newTestCollector(t)

	c.SetReplicaHealthy("db2:5432/app", true)
	c.SetReplicaHealthy("db3:5432/app", false)
	c.SetReplicaDraining("db2:5432/app", true)
	c.IncProbeFailure("db3:5432/app")
	c.ObserveProbeDuration("db3:5432/app", 0.5)

	out := scrape(c)
	assert.Contains(t, out, `splitdb_replica_healthy{replica="db2:5432/app"} 1`)
	assert.Contains(t, out, `splitdb_replica_healthy{replica="db3:5432/app"} 0`)
	assert.Contains(t, out, `splitdb_replica_draining{replica="db2:5432/app"} 1`)
	assert.Contains(t, out, `splitdb_probe_failures_total{replica="db3:5432/app"} 1`)
	assert.Contains(t, out, `splitdb_probe_duration_seconds_count{replica="db3:5432/app"} 1`)

	// Gauges flip back.
	c.SetReplicaHealthy("db3:5432/app", true)
	assert.Contains(t, scrape(c), `splitdb_replica_healthy{replica="db3:5432/app"} 1`)
}

func TestCollectorIDGeneration(t *testing.T) {
	c := newTestCollector(t)

	c.IncIDGenerated()
	c.IncIDGenerated()
	c.IncClockRegression(true)
	c.IncClockRegression(false)
	c.IncClockRegression(false)
	c.IncSequenceExhausted()

	out := scrape(c)
	assert.Contains(t, out, "splitdb_ids_generated_total 2")
	assert.Contains(t, out, `splitdb_clock_regressions_total{outcome="waited"} 1`)
	assert.Contains(t, out, `splitdb_clock_regressions_total{outcome="failed"} 2`)
	assert.Contains(t, out, "splitdb_sequence_exhausted_total 1")
}

func TestCollectorLabelEscaping(t *testing.T) {
	c := newTestCollector(t)
	c.IncRouteTotal(types.KindRead, `odd"name`)

	assert.Contains(t, scrape(c), `target="odd\"name"`)
}

func TestCollectorHandler(t *testing.T) {
	c := newTestCollector(t)
	c.IncIDGenerated()

	rec := httptest.NewRecorder()
	c.Handler(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "splitdb_ids_generated_total 1")
}

func TestCollectorSetAccessor(t *testing.T) {
	set := metrics.NewSet()
	c := New(WithMetricsSet(set))

	assert.Same(t, set, c.Set())
}
