package topology

import (
	"slices"
	"time"
)

// DefaultKey is the NATS KV key holding the drain configuration.
const DefaultKey = "splitdb.topology.drain"

// DrainConfig represents the drain mode configuration stored in NATS KV.
//
// This is the JSON structure that operations teams PUT to the KV store
// to take replicas out of read rotation.
type DrainConfig struct {
	// Drain lists the replicas currently being drained, by display name
	// (e.g. "replica1:5432/app") or address.
	Drain []string `json:"drain"`

	// Reason is a human-readable explanation for the drain.
	// Example: "VACUUM FULL", "Minor version upgrade"
	Reason string `json:"reason,omitempty"`
}

// Contains returns true if the given replica is in the drain list.
//
// Parameters:
//   - replica: Replica display name or address
//
// Returns:
//   - bool: true if the replica is being drained
func (d *DrainConfig) Contains(replica string) bool {
	return slices.Contains(d.Drain, replica)
}

// set returns the drain list as a set.
func (d *DrainConfig) set() map[string]bool {
	out := make(map[string]bool, len(d.Drain))
	for _, r := range d.Drain {
		out[r] = true
	}

	return out
}

// WatcherConfig holds configuration for topology watchers.
type WatcherConfig struct {
	// Key is the NATS KV key to watch for drain configuration.
	// Default: "splitdb.topology.drain"
	Key string

	// PollInterval is the fallback polling interval if watch fails.
	// Default: 5 seconds
	PollInterval time.Duration

	// InitialFetchTimeout is the timeout for the initial KV fetch.
	// Default: 10 seconds
	InitialFetchTimeout time.Duration

	// BufferSize is the capacity of the updates channel.
	// Default: 16
	BufferSize int
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
//
// Returns:
//   - WatcherConfig: Default configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Key:                 DefaultKey,
		PollInterval:        5 * time.Second,
		InitialFetchTimeout: 10 * time.Second,
		BufferSize:          16,
	}
}

// WatcherOption configures a topology watcher.
type WatcherOption func(*WatcherConfig)

// WithKey sets the NATS KV key to watch.
//
// Parameters:
//   - key: The key name (e.g., "orders-db.topology.drain")
//
// Returns:
//   - WatcherOption: Configuration option
func WithKey(key string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Key = key
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the watcher falls back to
// polling at this interval.
//
// Parameters:
//   - d: Polling interval duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithInitialFetchTimeout sets the timeout for the initial KV fetch.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithInitialFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.InitialFetchTimeout = d
	}
}

// WithBufferSize sets the capacity of the updates channel.
//
// When the channel is full the oldest pending update is replaced by a
// resync marker; consumers reload the full state via DrainedReplicas.
//
// Parameters:
//   - n: Channel capacity
//
// Returns:
//   - WatcherOption: Configuration option
func WithBufferSize(n int) WatcherOption {
	return func(c *WatcherConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}
