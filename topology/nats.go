package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/splitdb"
)

// maxSetDrainAttempts bounds the optimistic-concurrency retries of SetDrain.
const maxSetDrainAttempts = 5

// ErrDrainConflict is returned by NATS.SetDrain when concurrent writers kept
// changing the key between read and update.
var ErrDrainConflict = errors.New("splitdb/topology: drain key modified concurrently")

// NATS monitors a NATS KV bucket for drain configuration.
//
// It watches a configurable key and emits a TopologyUpdate for every replica
// whose drain status changes. This lets operations teams take replicas out
// of read rotation before maintenance (VACUUM, upgrades, re-seeding) and put
// them back afterwards without restarting clients.
//
// Watch() should be called once per instance. Subsequent calls return the
// same channel. The channel is closed when Close() is called or the context
// is cancelled.
type NATS struct {
	kv     jetstream.KeyValue
	config WatcherConfig
	state  *drainState

	mu           sync.Mutex
	done         chan struct{}
	closed       bool
	watchStarted bool
}

var (
	_ splitdb.TopologyWatcher  = (*NATS)(nil)
	_ splitdb.TopologyOperator = (*NATS)(nil)
	_ splitdb.DrainSnapshotter = (*NATS)(nil)
)

// NewNATS creates a new NATS KV topology watcher.
//
// The watcher begins monitoring the KV bucket when Watch() is called.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new watcher instance
//   - error: Error if kv is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "splitdb-config")
//
//	watcher, _ := topology.NewNATS(kv,
//	    topology.WithKey("orders.topology.drain"),
//	    topology.WithPollInterval(10*time.Second),
//	)
func NewNATS(kv jetstream.KeyValue, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, errors.New("splitdb/topology: KeyValue store is nil")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATS{
		kv:     kv,
		config: config,
		state:  newDrainState(config.BufferSize),
		done:   make(chan struct{}),
	}, nil
}

// Watch returns a channel that receives topology updates.
//
// The watcher spawns a background goroutine that monitors the NATS KV key.
// The current value is fetched first, so replicas already drained when the
// client starts are reported immediately.
//
// Multiple calls to Watch return the same channel; only the first call's
// context controls the watch lifecycle.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan splitdb.TopologyUpdate: Channel of topology changes
func (n *NATS) Watch(ctx context.Context) <-chan splitdb.TopologyUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.watchStarted && !n.closed {
		n.watchStarted = true
		go n.watchLoop(ctx)
	}

	return n.state.updates
}

// SetDrain drains or restores a single replica by rewriting the KV key.
//
// The read-modify-write uses the entry revision, so concurrent operators
// never lose each other's changes. Watchers (including this one) observe the
// change through the normal watch path.
//
// Parameters:
//   - ctx: Context for the KV round trips
//   - replica: Replica display name or address
//   - draining: true to add the replica to the drain list, false to remove it
//   - reason: Reason stored with the configuration when draining
//
// Returns:
//   - error: KV failure, or ErrDrainConflict after repeated conflicts
func (n *NATS) SetDrain(ctx context.Context, replica string, draining bool, reason string) error {
	for range maxSetDrainAttempts {
		var (
			config   DrainConfig
			revision uint64
		)

		entry, err := n.kv.Get(ctx, n.config.Key)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("splitdb/topology: get %s: %w", n.config.Key, err)
		default:
			revision = entry.Revision()
			// Deleted or malformed values are treated as an empty drain list.
			if entry.Operation() == jetstream.KeyValuePut {
				_ = json.Unmarshal(entry.Value(), &config)
			}
		}

		next, changed := edit(config, replica, draining, reason)
		if !changed {
			return nil
		}

		value, err := json.Marshal(next)
		if err != nil {
			return err
		}

		if revision == 0 {
			_, err = n.kv.Create(ctx, n.config.Key, value)
		} else {
			_, err = n.kv.Update(ctx, n.config.Key, value, revision)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("splitdb/topology: update %s: %w", n.config.Key, err)
		}
	}

	return ErrDrainConflict
}

// edit returns config with replica added or removed.
func edit(config DrainConfig, replica string, draining bool, reason string) (DrainConfig, bool) {
	has := config.Contains(replica)

	if draining {
		if has && config.Reason == reason {
			return config, false
		}
		if !has {
			config.Drain = append(config.Drain, replica)
		}
		config.Reason = reason

		return config, true
	}

	if !has {
		return config, false
	}

	kept := config.Drain[:0:0]
	for _, r := range config.Drain {
		if r != replica {
			kept = append(kept, r)
		}
	}
	config.Drain = kept
	if len(kept) == 0 {
		config.Reason = ""
	}

	return config, true
}

// Close stops the watcher and releases resources.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	close(n.done)

	if !n.watchStarted {
		n.state.close()
	}

	return nil
}

// IsDraining returns whether the specified replica is currently drained.
//
// This reflects the last processed KV entry; it does not perform a live fetch.
//
// Parameters:
//   - replica: Replica display name or address
//
// Returns:
//   - bool: true if the replica is drained
func (n *NATS) IsDraining(replica string) bool {
	return n.state.isDraining(replica)
}

// DrainReason returns the cached drain reason for a replica, or empty.
func (n *NATS) DrainReason(replica string) string {
	return n.state.reason(replica)
}

// DrainedReplicas returns every drained replica mapped to its reason.
func (n *NATS) DrainedReplicas() map[string]string {
	return n.state.drainedCopy()
}

// Config returns the watcher configuration.
//
// Returns:
//   - WatcherConfig: The current watcher configuration
func (n *NATS) Config() WatcherConfig {
	return n.config
}

// watchLoop is the main watch loop that monitors the NATS KV key.
func (n *NATS) watchLoop(ctx context.Context) {
	defer n.state.close()

	n.fetchAndApply(ctx)

	watcher, err := n.kv.Watch(ctx, n.config.Key)
	if err != nil {
		n.pollLoop(ctx)
		return
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				n.pollLoop(ctx)
				return
			}
			if entry == nil {
				// End of initial values marker.
				continue
			}
			n.processEntry(entry)
		}
	}
}

// pollLoop is a fallback polling loop when watch fails.
func (n *NATS) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			n.fetchAndApply(ctx)
		}
	}
}

// fetchAndApply fetches the current KV value and applies it.
func (n *NATS) fetchAndApply(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.InitialFetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, n.config.Key)
	if err != nil {
		// Missing key or fetch error: nothing is drained.
		n.state.apply(DrainConfig{})
		return
	}

	n.processEntry(entry)
}

// processEntry parses a KV entry and applies the drain list it carries.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) {
	if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
		n.state.apply(DrainConfig{})
		return
	}

	var config DrainConfig
	if err := json.Unmarshal(entry.Value(), &config); err != nil {
		// Invalid JSON: treat as no drain.
		n.state.apply(DrainConfig{})
		return
	}

	n.state.apply(config)
}
