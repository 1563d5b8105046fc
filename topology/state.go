package topology

import (
	"maps"
	"slices"
	"sync"

	"github.com/arloliu/splitdb"
)

// drainState tracks which replicas are drained and fans changes out to a
// single updates channel. Sends are non-blocking; when the channel is full
// the oldest pending update is replaced by a resync marker, so a consumer
// that also implements reconciliation never loses a change.
type drainState struct {
	mu      sync.RWMutex
	drained map[string]string // replica -> reason
	updates chan splitdb.TopologyUpdate
	closed  bool
}

func newDrainState(buffer int) *drainState {
	if buffer <= 0 {
		buffer = DefaultWatcherConfig().BufferSize
	}

	return &drainState{
		drained: make(map[string]string),
		updates: make(chan splitdb.TopologyUpdate, buffer),
	}
}

// set changes a single replica and reports whether anything changed.
func (s *drainState) set(replica string, draining bool, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	current, isDrained := s.drained[replica]
	switch {
	case draining && isDrained && current == reason:
		return false
	case !draining && !isDrained:
		return false
	}

	if draining {
		s.drained[replica] = reason
	} else {
		delete(s.drained, replica)
		reason = ""
	}
	s.emitLocked(splitdb.TopologyUpdate{Replica: replica, Draining: draining, Reason: reason})

	return true
}

// apply replaces the whole drain list and emits one update per replica
// whose state changed. Replicas that disappear from the list are undrained.
func (s *drainState) apply(config DrainConfig) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	want := config.set()
	changed := 0

	for _, replica := range sortedKeys(s.drained) {
		if want[replica] {
			continue
		}
		delete(s.drained, replica)
		s.emitLocked(splitdb.TopologyUpdate{Replica: replica})
		changed++
	}

	for _, replica := range sortedKeys(want) {
		if reason, ok := s.drained[replica]; ok && reason == config.Reason {
			continue
		}
		s.drained[replica] = config.Reason
		s.emitLocked(splitdb.TopologyUpdate{Replica: replica, Draining: true, Reason: config.Reason})
		changed++
	}

	return changed
}

// emitLocked must be called with s.mu held; it is the only sender.
func (s *drainState) emitLocked(update splitdb.TopologyUpdate) {
	select {
	case s.updates <- update:
		return
	default:
	}

	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- splitdb.TopologyUpdate{Resync: true}:
	default:
	}
}

func (s *drainState) isDraining(replica string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.drained[replica]

	return ok
}

func (s *drainState) reason(replica string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.drained[replica]
}

func (s *drainState) drainedCopy() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.drained)
}

func (s *drainState) snapshot() DrainConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config := DrainConfig{Drain: sortedKeys(s.drained)}
	for _, replica := range config.Drain {
		if r := s.drained[replica]; r != "" {
			config.Reason = r
			break
		}
	}

	return config
}

// close closes the updates channel exactly once.
func (s *drainState) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.updates)

	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return keys
}
