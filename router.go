package splitdb

import (
	"time"

	"github.com/arloliu/splitdb/replica"
	"github.com/arloliu/splitdb/types"
)

// Router picks the physical target for each command.
//
// Writes always go to the primary. Reads go to the next eligible replica
// in round-robin order, or to the primary when the caller forces it or no
// replica is eligible. Routing never fails once the Router exists.
//
// Router is safe for concurrent use; it holds no lock on the routing path.
type Router struct {
	set        *replica.Set
	classifier Classifier
	logger     Logger
	metrics    MetricsCollector
}

// NewRouter creates a Router over one primary and its replicas.
//
// Parameters:
//   - primary: Connection string of the primary
//   - replicas: Connection strings of the replicas, in rotation order
//   - opts: Optional configuration options (classifier, logger, metrics)
//
// Returns:
//   - *Router: A router with every replica initially healthy
//   - error: *types.ConfigurationError if the primary is missing, the
//     replica list is empty or a replica address is blank
func NewRouter(primary string, replicas []string, opts ...Option) (*Router, error) {
	set, err := replica.NewSet(primary, replicas)
	if err != nil {
		return nil, err
	}

	return newRouter(set, newConfig(opts)), nil
}

func newRouter(set *replica.Set, config *ClientConfig) *Router {
	return &Router{
		set:        set,
		classifier: config.Classifier,
		logger:     config.Logger,
		metrics:    config.Metrics,
	}
}

// Set returns the replica set the router draws from.
//
// Use it to attach a replica.HealthMonitor or to drain replicas by hand.
func (r *Router) Set() *replica.Set {
	return r.set
}

// Classify returns the Kind of a command using the configured classifier.
func (r *Router) Classify(command string) Kind {
	return r.classifier.Classify(command)
}

// RouteForWrite returns the primary.
func (r *Router) RouteForWrite() Target {
	target := r.set.Primary()
	r.metrics.IncRouteTotal(types.KindWrite, target.Name)

	return target
}

// RouteForRead returns the target for a read.
//
// Parameters:
//   - forcePrimary: true to skip replicas for this read
//
// Returns:
//   - Target: A replica, or the primary when forced or when no replica is
//     eligible
func (r *Router) RouteForRead(forcePrimary bool) Target {
	target, _ := r.routeRead(forcePrimary)

	return target
}

func (r *Router) routeRead(forcePrimary bool) (Target, bool) {
	if forcePrimary {
		target := r.set.Primary()
		r.metrics.IncRouteTotal(types.KindRead, target.Name)

		return target, false
	}

	node, err := r.set.NextReplica()
	if err != nil {
		target := r.set.Primary()
		r.logger.Debug("no eligible replica, reading from primary",
			"replicas", r.set.Len(),
			"error", err,
		)
		r.metrics.IncPrimaryFallback()
		r.metrics.IncRouteTotal(types.KindRead, target.Name)

		return target, true
	}

	target := node.Target()
	r.metrics.IncRouteTotal(types.KindRead, target.Name)

	return target, false
}

// Decide classifies a command and routes it.
//
// The returned decision has no Token; the Correlator assigns one when it
// stores the decision.
//
// Parameters:
//   - command: Raw command text
//   - forcePrimary: true to keep a read on the primary
//
// Returns:
//   - RoutingDecision: Kind, Target and how the target was reached
func (r *Router) Decide(command string, forcePrimary bool) RoutingDecision {
	decision := RoutingDecision{
		Kind:         r.Classify(command),
		ForcePrimary: forcePrimary,
		DecidedAt:    time.Now(),
	}

	if decision.Kind == types.KindRead {
		decision.Target, decision.Fallback = r.routeRead(forcePrimary)
	} else {
		decision.Target = r.RouteForWrite()
	}

	return decision
}
