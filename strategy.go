package splitdb

import (
	"context"
)

// Classifier decides whether a command may be served by a replica.
//
// Implementations MUST be safe for concurrent use from multiple goroutines
// and MUST return KindWrite for anything they cannot classify.
//
// The default is policy.KeywordClassifier.
type Classifier interface {
	// Classify returns the Kind of a command.
	//
	// Parameters:
	//   - command: Raw command text
	//
	// Returns:
	//   - Kind: KindRead or KindWrite
	Classify(command string) Kind
}

// TopologyWatcher reports replicas entering or leaving drain mode.
//
// Implementations include topology.Local (in-memory) and topology.NATS
// (NATS KV backed).
type TopologyWatcher interface {
	// Watch returns a channel that receives topology updates.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//
	// Returns:
	//   - <-chan TopologyUpdate: Channel of drain changes, closed on shutdown
	Watch(ctx context.Context) <-chan TopologyUpdate
}

// DrainSnapshotter is implemented by watchers that can report their whole
// drain state. SQLClient reconciles its replica set from it when it starts
// consuming a watcher and whenever an update has Resync set.
type DrainSnapshotter interface {
	// DrainedReplicas returns every drained replica mapped to its reason.
	DrainedReplicas() map[string]string
}

// TopologyOperator changes the drain state of a replica.
//
// This interface is used by operations tools and tests. Implementations
// include topology.Local and topology.NATS.
type TopologyOperator interface {
	// SetDrain takes a replica out of, or back into, read rotation.
	//
	// Parameters:
	//   - ctx: Context for cancellation/timeout
	//   - replica: Replica display name or address
	//   - draining: true to stop routing reads to the replica
	//   - reason: Human-readable reason (only used when draining=true)
	//
	// Returns:
	//   - error: nil on success, error if the operation fails
	SetDrain(ctx context.Context, replica string, draining bool, reason string) error
}

// TopologyUpdate represents a change in a replica's drain state.
type TopologyUpdate struct {
	// Replica is the display name or address of the replica.
	Replica string

	// Draining is true when the replica must leave read rotation.
	Draining bool

	// Reason is the operator-supplied reason, if any.
	Reason string

	// Resync marks that earlier updates were dropped. Replica is empty and
	// the consumer must reload the full state from the watcher.
	Resync bool
}
