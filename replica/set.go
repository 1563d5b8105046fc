package replica

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/arloliu/splitdb/internal/dsn"
	"github.com/arloliu/splitdb/types"
)

// Node is one read replica.
//
// Its address never changes. The healthy flag is written only by a
// HealthMonitor and the draining flag only by a drain topology consumer;
// both may be read from any goroutine.
type Node struct {
	address  string
	name     string
	healthy  atomic.Bool
	draining atomic.Bool
}

func newNode(address, name string) *Node {
	n := &Node{address: address, name: name}
	n.healthy.Store(true)

	return n
}

// Address returns the connection string of the replica.
func (n *Node) Address() string { return n.address }

// Name returns the credential-free display name of the replica.
func (n *Node) Name() string { return n.name }

// Healthy reports the result of the most recent probe.
//
// Nodes start healthy until the first probe says otherwise.
func (n *Node) Healthy() bool { return n.healthy.Load() }

// Draining reports whether an operator took the node out of rotation.
func (n *Node) Draining() bool { return n.draining.Load() }

// Eligible reports whether the node may serve reads right now.
func (n *Node) Eligible() bool { return n.Healthy() && !n.Draining() }

// Target returns the routing target for this node.
func (n *Node) Target() types.Target {
	return types.Target{Address: n.address, Name: n.name, Role: types.RoleReplica}
}

// setHealthy stores the flag and reports whether it changed.
func (n *Node) setHealthy(healthy bool) bool {
	return n.healthy.Swap(healthy) != healthy
}

// Set is the primary address plus the fixed list of replicas in rotation.
//
// NextReplica is lock-free: the cursor is an atomic counter and node
// flags are atomics, so health updates never block routing.
type Set struct {
	primary types.Target
	nodes   []*Node
	cursor  atomic.Uint64
}

// NewSet creates a Set.
//
// Parameters:
//   - primary: Connection string of the primary
//   - replicas: Connection strings of the replicas, in rotation order
//
// Returns:
//   - *Set: The replica set, every node initially healthy
//   - error: *types.ConfigurationError if the primary is missing, the
//     replica list is empty or any replica address is blank
func NewSet(primary string, replicas []string) (*Set, error) {
	if strings.TrimSpace(primary) == "" {
		return nil, types.NewConfigurationError("primary", "address is required")
	}
	if len(replicas) == 0 {
		return nil, types.NewConfigurationError("replicas", "at least one replica is required")
	}

	s := &Set{
		primary: types.Target{
			Address: primary,
			Name:    dsn.DisplayName(primary, "primary"),
			Role:    types.RolePrimary,
		},
		nodes: make([]*Node, 0, len(replicas)),
	}

	for i, address := range replicas {
		if strings.TrimSpace(address) == "" {
			return nil, types.NewConfigurationError("replicas["+strconv.Itoa(i)+"]", "address is blank")
		}
		s.nodes = append(s.nodes, newNode(address, dsn.DisplayName(address, "replica-"+strconv.Itoa(i))))
	}

	return s, nil
}

// Primary returns the primary target.
func (s *Set) Primary() types.Target {
	return s.primary
}

// Nodes returns the replicas in rotation order.
//
// The slice is a copy; the nodes are shared.
func (s *Set) Nodes() []*Node {
	nodes := make([]*Node, len(s.nodes))
	copy(nodes, s.nodes)

	return nodes
}

// Len returns the number of replicas.
func (s *Set) Len() int {
	return len(s.nodes)
}

// Lookup returns the replica whose name or address equals id.
func (s *Set) Lookup(id string) (*Node, bool) {
	for _, n := range s.nodes {
		if n.name == id || n.address == id {
			return n, true
		}
	}

	return nil, false
}

// SetDraining takes a replica out of (or back into) rotation.
//
// Parameters:
//   - id: Replica name or address
//   - draining: true to stop sending reads to it
//
// Returns:
//   - bool: true if a replica matched id
func (s *Set) SetDraining(id string, draining bool) bool {
	n, ok := s.Lookup(id)
	if !ok {
		return false
	}
	n.draining.Store(draining)

	return true
}

// NextReplica returns the next eligible replica in round-robin order.
//
// Each call advances the cursor by one slot, so over k calls with m
// eligible nodes every node is chosen floor(k/m) or ceil(k/m) times.
// Ineligible nodes are filtered out before the modulo is taken.
//
// Returns:
//   - *Node: The chosen replica
//   - error: types.ErrNoHealthyReplica if no node is eligible
func (s *Set) NextReplica() (*Node, error) {
	var (
		buf      [8]*Node
		eligible = buf[:0]
	)
	for _, n := range s.nodes {
		if n.Eligible() {
			eligible = append(eligible, n)
		}
	}

	if len(eligible) == 0 {
		return nil, types.ErrNoHealthyReplica
	}

	slot := s.cursor.Add(1) - 1

	return eligible[slot%uint64(len(eligible))], nil
}

// Eligible returns the number of nodes currently able to serve reads.
func (s *Set) Eligible() int {
	count := 0
	for _, n := range s.nodes {
		if n.Eligible() {
			count++
		}
	}

	return count
}
