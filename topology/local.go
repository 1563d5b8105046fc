package topology

import (
	"context"
	"sync"

	"github.com/arloliu/splitdb"
)

// Local provides an in-memory topology watcher and operator.
//
// Unlike NATS, this implementation allows programmatic control of drain
// states, which makes it the natural choice for unit tests, demos and
// single-process deployments where an admin endpoint toggles drain directly.
// It implements both TopologyWatcher and TopologyOperator.
type Local struct {
	state *drainState

	mu      sync.Mutex
	done    chan struct{}
	closed  bool
	watched bool
}

var (
	_ splitdb.TopologyWatcher  = (*Local)(nil)
	_ splitdb.TopologyOperator = (*Local)(nil)
	_ splitdb.DrainSnapshotter = (*Local)(nil)
)

// NewLocal creates a new in-memory topology watcher/operator.
//
// Parameters:
//   - opts: Optional configuration; only WithBufferSize applies
//
// Returns:
//   - *Local: A new local topology instance
func NewLocal(opts ...WatcherOption) *Local {
	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Local{
		state: newDrainState(config.BufferSize),
		done:  make(chan struct{}),
	}
}

// Watch returns a channel that receives topology updates.
//
// Updates are emitted when SetDrain or Apply change state. The channel is
// closed when Close() is called or the context is cancelled.
//
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan splitdb.TopologyUpdate: Channel of topology changes
func (l *Local) Watch(ctx context.Context) <-chan splitdb.TopologyUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.watched {
		l.watched = true
		go l.waitForClose(ctx)
	}

	return l.state.updates
}

// SetDrain sets the drain state for a replica.
//
// A TopologyUpdate is emitted only if the state (or the reason of a drained
// replica) changes.
//
// Parameters:
//   - ctx: Accepted for interface compliance; unused
//   - replica: Replica display name or address
//   - draining: true to take the replica out of rotation, false to restore it
//   - reason: Human-readable reason (only kept when draining=true)
//
// Returns:
//   - error: Always nil for the local implementation
func (l *Local) SetDrain(_ context.Context, replica string, draining bool, reason string) error {
	l.state.set(replica, draining, reason)

	return nil
}

// Apply replaces the full drain list, as a PUT to the NATS key would.
//
// Parameters:
//   - config: The new drain configuration
//
// Returns:
//   - int: Number of replicas whose state changed
func (l *Local) Apply(config DrainConfig) int {
	return l.state.apply(config)
}

// IsDraining returns whether the specified replica is currently drained.
func (l *Local) IsDraining(replica string) bool {
	return l.state.isDraining(replica)
}

// DrainReason returns the reason recorded for a drained replica, or empty.
func (l *Local) DrainReason(replica string) string {
	return l.state.reason(replica)
}

// DrainedReplicas returns every drained replica mapped to its reason.
func (l *Local) DrainedReplicas() map[string]string {
	return l.state.drainedCopy()
}

// Snapshot returns the current drain list as a DrainConfig.
func (l *Local) Snapshot() DrainConfig {
	return l.state.snapshot()
}

// Close stops the watcher and closes the updates channel.
//
// This method is safe to call multiple times.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)

	if !l.watched {
		l.state.close()
	}

	return nil
}

func (l *Local) waitForClose(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-l.done:
	}

	l.state.close()
}
