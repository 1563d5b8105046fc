package splitdb

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// QueryStats aggregates executions of one statement text.
type QueryStats struct {
	// Query is the statement text as passed to the client.
	Query string

	// Kind is how the statement was classified.
	Kind Kind

	// Count is the number of executions, failed ones included.
	Count int64

	// Errors is the number of executions that returned an error.
	Errors int64

	// TotalDuration is the summed execution time.
	TotalDuration time.Duration

	// LastExecuted is when the statement last finished.
	LastExecuted time.Time
}

// AverageDuration returns TotalDuration / Count.
func (s QueryStats) AverageDuration() time.Duration {
	if s.Count == 0 {
		return 0
	}

	return s.TotalDuration / time.Duration(s.Count)
}

// statsTracker keeps QueryStats for at most limit distinct statements.
type statsTracker struct {
	limit int

	mu      sync.Mutex
	entries map[string]*QueryStats
	dropped int64
}

func newStatsTracker(limit int) *statsTracker {
	return &statsTracker{
		limit:   limit,
		entries: make(map[string]*QueryStats),
	}
}

func (t *statsTracker) record(query string, kind Kind, elapsed time.Duration, failed bool) {
	if t.limit <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[query]
	if !ok {
		if len(t.entries) >= t.limit {
			t.dropped++
			return
		}
		entry = &QueryStats{Query: query, Kind: kind}
		t.entries[query] = entry
	}

	entry.Count++
	if failed {
		entry.Errors++
	}
	entry.TotalDuration += elapsed
	entry.LastExecuted = time.Now()
}

// snapshot returns copies sorted by total duration, slowest first.
func (t *statsTracker) snapshot() []QueryStats {
	t.mu.Lock()
	out := make([]QueryStats, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, *entry)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b QueryStats) int {
		if c := cmp.Compare(b.TotalDuration, a.TotalDuration); c != 0 {
			return c
		}

		return cmp.Compare(a.Query, b.Query)
	})

	return out
}

func (t *statsTracker) untracked() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.dropped
}

func (t *statsTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.entries)
	t.dropped = 0
}
