package topology

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitdb"
)

func nextUpdate(t *testing.T, ch <-chan splitdb.TopologyUpdate) splitdb.TopologyUpdate {
	t.Helper()

	select {
	case update, ok := <-ch:
		require.True(t, ok, "updates channel closed")
		return update
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for update")
	}

	return splitdb.TopologyUpdate{}
}

func assertNoUpdate(t *testing.T, ch <-chan splitdb.TopologyUpdate) {
	t.Helper()

	select {
	case update := <-ch:
		t.Fatalf("unexpected update %+v", update)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewLocal(t *testing.T) {
	local := NewLocal()
	require.NotNil(t, local)
	defer local.Close()

	assert.False(t, local.IsDraining("replica-0"))
	assert.Empty(t, local.Snapshot().Drain)
}

func TestLocalSetDrain(t *testing.T) {
	local := NewLocal()
	defer local.Close()

	ctx := t.Context()
	updates := local.Watch(ctx)

	require.NoError(t, local.SetDrain(ctx, "replica-1", true, "VACUUM FULL"))

	update := nextUpdate(t, updates)
	assert.Equal(t, splitdb.TopologyUpdate{Replica: "replica-1", Draining: true, Reason: "VACUUM FULL"}, update)

	assert.True(t, local.IsDraining("replica-1"))
	assert.False(t, local.IsDraining("replica-0"))
	assert.Equal(t, "VACUUM FULL", local.DrainReason("replica-1"))
}

func TestLocalClearDrain(t *testing.T) {
	local := NewLocal()
	defer local.Close()

	ctx := t.Context()
	updates := local.Watch(ctx)

	_ = local.SetDrain(ctx, "replica-1", true, "upgrade")
	nextUpdate(t, updates)

	require.NoError(t, local.SetDrain(ctx, "replica-1", false, "ignored"))

	update := nextUpdate(t, updates)
	assert.Equal(t, "replica-1", update.Replica)
	assert.False(t, update.Draining)
	assert.Empty(t, update.Reason)
	assert.False(t, local.IsDraining("replica-1"))
	assert.Empty(t, local.DrainReason("replica-1"))
}

func TestLocalNoUpdateOnSameState(t *testing.T) {
	local := NewLocal()
	defer local.Close()

	ctx := t.Context()
	updates := local.Watch(ctx)

	_ = local.SetDrain(ctx, "replica-0", true, "x")
	nextUpdate(t, updates)

	_ = local.SetDrain(ctx, "replica-0", true, "x")
	_ = local.SetDrain(ctx, "replica-9", false, "")
	assertNoUpdate(t, updates)

	// A new reason is a change.
	_ = local.SetDrain(ctx, "replica-0", true, "y")
	assert.Equal(t, "y", nextUpdate(t, updates).Reason)
}

func TestLocalApply(t *testing.T) {
	local := NewLocal()
	defer local.Close()

	updates := local.Watch(t.Context())

	changed := local.Apply(DrainConfig{Drain: []string{"b", "a"}, Reason: "patching"})
	assert.Equal(t, 2, changed)
	assert.Equal(t, "a", nextUpdate(t, updates).Replica)
	assert.Equal(t, "b", nextUpdate(t, updates).Replica)

	// Removing "a" from the list restores it; "b" is unchanged.
	changed = local.Apply(DrainConfig{Drain: []string{"b"}, Reason: "patching"})
	assert.Equal(t, 1, changed)
	update := nextUpdate(t, updates)
	assert.Equal(t, splitdb.TopologyUpdate{Replica: "a"}, update)
	assertNoUpdate(t, updates)

	assert.Equal(t, DrainConfig{Drain: []string{"b"}, Reason: "patching"}, local.Snapshot())
}

func TestLocalBufferOverflowKeepsState(t *testing.T) {
	local := NewLocal(WithBufferSize(1))
	defer local.Close()

	ctx := t.Context()
	updates := local.Watch(ctx)

	_ = local.SetDrain(ctx, "a", true, "")
	_ = local.SetDrain(ctx, "b", true, "")

	// The pending update for "a" is replaced by a resync marker.
	assert.Equal(t, splitdb.TopologyUpdate{Resync: true}, nextUpdate(t, updates))
	assertNoUpdate(t, updates)
	assert.True(t, local.IsDraining("a"))
	assert.True(t, local.IsDraining("b"))
	assert.Equal(t, map[string]string{"a": "", "b": ""}, local.DrainedReplicas())

	// With room in the channel, updates flow again.
	_ = local.SetDrain(ctx, "a", false, "")
	assert.Equal(t, splitdb.TopologyUpdate{Replica: "a"}, nextUpdate(t, updates))
}

func TestLocalDrainedReplicasIsACopy(t *testing.T) {
	local := NewLocal()
	defer local.Close()

	local.Apply(DrainConfig{Drain: []string{"a"}, Reason: "backup"})

	drained := local.DrainedReplicas()
	assert.Equal(t, map[string]string{"a": "backup"}, drained)

	drained["b"] = "x"
	assert.False(t, local.IsDraining("b"))
}

func TestLocalClose(t *testing.T) {
	local := NewLocal()

	ctx := t.Context()
	updates := local.Watch(ctx)

	require.NoError(t, local.Close())
	require.NoError(t, local.Close())

	// SetDrain after close must not panic.
	_ = local.SetDrain(ctx, "a", true, "")

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestLocalCloseWithoutWatch(t *testing.T) {
	local := NewLocal()
	require.NoError(t, local.Close())

	_, ok := <-local.Watch(t.Context())
	assert.False(t, ok)
}

func TestLocalContextCancellation(t *testing.T) {
	local := NewLocal()
	defer local.Close()

	ctx, cancel := context.WithCancel(t.Context())
	updates := local.Watch(ctx)
	cancel()

	closed := make(chan struct{})
	go func() {
		for range updates {
		}
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestDrainConfigContains(t *testing.T) {
	config := DrainConfig{Drain: []string{"replica-0", "db2:5432/app"}}

	assert.True(t, config.Contains("replica-0"))
	assert.True(t, config.Contains("db2:5432/app"))
	assert.False(t, config.Contains("replica-1"))
	assert.False(t, (&DrainConfig{}).Contains(""))
}

func TestEdit(t *testing.T) {
	config, changed := edit(DrainConfig{}, "a", true, "r1")
	require.True(t, changed)
	assert.Equal(t, DrainConfig{Drain: []string{"a"}, Reason: "r1"}, config)

	_, changed = edit(config, "a", true, "r1")
	assert.False(t, changed)

	config, changed = edit(config, "b", true, "r2")
	require.True(t, changed)
	assert.Equal(t, DrainConfig{Drain: []string{"a", "b"}, Reason: "r2"}, config)

	original := config
	config, changed = edit(config, "a", false, "")
	require.True(t, changed)
	assert.Equal(t, []string{"b"}, config.Drain)
	assert.Equal(t, []string{"a", "b"}, original.Drain, "input slice is not modified")

	config, changed = edit(config, "b", false, "")
	require.True(t, changed)
	assert.Empty(t, config.Drain)
	assert.Empty(t, config.Reason)

	_, changed = edit(config, "b", false, "")
	assert.False(t, changed)
}
