package idgen_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/splitdb/idgen"
	"github.com/arloliu/splitdb/types"
)

func TestNewRejectsOutOfRangeIdentity(t *testing.T) {
	tests := []struct {
		name         string
		datacenterID int64
		workerID     int64
		field        string
	}{
		{"worker too large", 0, 32, "workerID"},
		{"worker negative", 0, -1, "workerID"},
		{"datacenter too large", 32, 0, "datacenterID"},
		{"datacenter negative", -1, 0, "datacenterID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := idgen.New(tt.datacenterID, tt.workerID)
			require.ErrorIs(t, err, types.ErrConfiguration)

			var cfgErr *types.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewAcceptsBoundaryIdentity(t *testing.T) {
	g, err := idgen.New(31, 31)
	require.NoError(t, err)
	assert.Equal(t, int64(31), g.DatacenterID())
	assert.Equal(t, int64(31), g.WorkerID())
}

func TestNewRejectsFutureEpoch(t *testing.T) {
	_, err := idgen.New(0, 0, idgen.WithEpoch(time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, types.ErrConfiguration)
}

func TestNewRejectsInvalidLayout(t *testing.T) {
	_, err := idgen.New(0, 0, idgen.WithLayout(idgen.Layout{DatacenterBits: 10, WorkerBits: 10, SequenceBits: 20}))
	require.ErrorIs(t, err, types.ErrConfiguration)

	_, err = idgen.New(0, 0, idgen.WithLayout(idgen.Layout{DatacenterBits: 0, WorkerBits: 10, SequenceBits: 12}))
	require.ErrorIs(t, err, types.ErrConfiguration)
}

func TestNextIDStrictlyIncreasing(t *testing.T) {
	g, err := idgen.New(3, 7)
	require.NoError(t, err)

	var last int64
	for i := range 100_000 {
		id, err := g.NextID()
		require.NoError(t, err)
		if id <= last {
			t.Fatalf("id %d at iteration %d is not greater than %d", id, i, last)
		}
		last = id
	}
}

func TestNextIDConcurrentUnique(t *testing.T) {
	g, err := idgen.New(1, 2)
	require.NoError(t, err)

	const (
		goroutines = 8
		perWorker  = 5_000
	)

	results := make([][]int64, goroutines)
	var wg sync.WaitGroup
	for w := range goroutines {
		wg.Go(func() {
			ids := make([]int64, 0, perWorker)
			for range perWorker {
				id, err := g.NextID()
				if err != nil {
					t.Errorf("NextID: %v", err)
					return
				}
				ids = append(ids, id)
			}
			results[w] = ids
		})
	}
	wg.Wait()

	seen := make(map[int64]struct{}, goroutines*perWorker)
	for _, ids := range results {
		for i, id := range ids {
			if i > 0 {
				require.Greater(t, id, ids[i-1], "ids observed by one goroutine must increase")
			}
			_, dup := seen[id]
			require.False(t, dup, "duplicate id %d", id)
			seen[id] = struct{}{}
		}
	}
	require.Len(t, seen, goroutines*perWorker)
}

func TestDistinctIdentitiesNeverCollide(t *testing.T) {
	clock := idgen.NewManualClock(1_700_000_000_000)

	seen := make(map[int64][2]int64)
	for dc := int64(0); dc <= 31; dc++ {
		for worker := int64(0); worker <= 31; worker++ {
			g, err := idgen.New(dc, worker, idgen.WithClock(clock))
			require.NoError(t, err)

			// Same millisecond and sequence for every generator: only the
			// identity bits can tell them apart.
			id, err := g.NextID()
			require.NoError(t, err)

			if other, dup := seen[id]; dup {
				t.Fatalf("identity (%d,%d) collides with (%d,%d)", dc, worker, other[0], other[1])
			}
			seen[id] = [2]int64{dc, worker}

			parts := g.Decompose(id)
			require.Equal(t, dc, parts.DatacenterID)
			require.Equal(t, worker, parts.WorkerID)
		}
	}
}

func TestDecompose(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	clock := idgen.NewManualClock(issuedAt.UnixMilli())

	g, err := idgen.New(9, 17, idgen.WithClock(clock))
	require.NoError(t, err)

	_, err = g.NextID()
	require.NoError(t, err)
	id, err := g.NextID()
	require.NoError(t, err)

	parts := idgen.Decompose(id)
	assert.Equal(t, int64(9), parts.DatacenterID)
	assert.Equal(t, int64(17), parts.WorkerID)
	assert.Equal(t, int64(1), parts.Sequence)
	assert.True(t, parts.Time.Equal(issuedAt))
	assert.Equal(t, issuedAt.UnixMilli()-idgen.DefaultEpoch.UnixMilli(), parts.Elapsed)
}

func TestNextIDString(t *testing.T) {
	g, err := idgen.New(0, 0)
	require.NoError(t, err)

	s, err := g.NextIDString()
	require.NoError(t, err)
	assert.NotEmpty(t, s)
	assert.NotContains(t, s, "-")
}

func TestMustNextIDPanicsOnRegression(t *testing.T) {
	clock := idgen.NewManualClock(1_700_000_000_000)
	g, err := idgen.New(0, 0, idgen.WithClock(clock))
	require.NoError(t, err)

	require.NotPanics(t, func() { g.MustNextID() })

	clock.Advance(-time.Second)
	require.Panics(t, func() { g.MustNextID() })
}

func TestZeroToleranceFailsOnAnyRegression(t *testing.T) {
	clock := idgen.NewManualClock(1_700_000_000_000)
	g, err := idgen.New(0, 0, idgen.WithClock(clock), idgen.WithDriftTolerance(0))
	require.NoError(t, err)

	_, err = g.NextID()
	require.NoError(t, err)

	clock.Advance(-time.Millisecond)
	_, err = g.NextID()
	require.ErrorIs(t, err, types.ErrClockRegression)
}

func TestCustomLayout(t *testing.T) {
	layout := idgen.Layout{DatacenterBits: 3, WorkerBits: 7, SequenceBits: 10}
	clock := idgen.NewManualClock(1_700_000_000_000)

	_, err := idgen.New(0, 128, idgen.WithLayout(layout), idgen.WithClock(clock))
	require.ErrorIs(t, err, types.ErrConfiguration)

	g, err := idgen.New(5, 127, idgen.WithLayout(layout), idgen.WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, uint(43), g.Layout().TimestampBits())

	id, err := g.NextID()
	require.NoError(t, err)

	parts := g.Decompose(id)
	assert.Equal(t, int64(5), parts.DatacenterID)
	assert.Equal(t, int64(127), parts.WorkerID)
}
