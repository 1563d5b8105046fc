package splitdb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/splitdb/types"
)

// pendingDecision is stored before routing to reserve its token. decision
// and expires are written once, before ready is set, and never after.
type pendingDecision struct {
	decision RoutingDecision
	expires  time.Time
	ready    atomic.Bool
}

// Correlator carries a routing decision from the moment a command is
// prepared to the moment a connection is opened for it.
//
// Decisions are keyed by the Token of the logical operation, so any number
// of operations may be between the two steps at once without seeing each
// other's decisions. Each decision is consumed at most once; decisions that
// are never consumed expire after the TTL.
type Correlator struct {
	router        *Router
	ttl           time.Duration
	sweepInterval time.Duration
	logger        Logger
	metrics       MetricsCollector
	now           func() time.Time

	pending sync.Map // Token -> *pendingDecision
	count   atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	gen     uint64
}

// NewCorrelator creates a Correlator that asks router for decisions.
//
// Parameters:
//   - router: Router that classifies and routes commands
//   - opts: Optional configuration options (decision TTL, sweep interval,
//     logger, metrics)
//
// Returns:
//   - *Correlator: A correlator; call Start to evict expired decisions in
//     the background, or call Sweep yourself
func NewCorrelator(router *Router, opts ...Option) *Correlator {
	return newCorrelator(router, newConfig(opts))
}

func newCorrelator(router *Router, config *ClientConfig) *Correlator {
	return &Correlator{
		router:        router,
		ttl:           config.DecisionTTL,
		sweepInterval: config.SweepInterval,
		logger:        config.Logger,
		metrics:       config.Metrics,
		now:           time.Now,
	}
}

// TTL returns how long an unconsumed decision is kept.
func (c *Correlator) TTL() time.Duration { return c.ttl }

// Decide routes a command and stores the decision under token.
//
// A zero token is replaced by a fresh one; the returned decision always
// carries the token it was stored under.
//
// Parameters:
//   - token: Identity of the logical operation
//   - command: Raw command text
//   - forcePrimary: true to keep a read on the primary
//
// Returns:
//   - RoutingDecision: The stored decision
//   - error: types.ErrDuplicateToken if token already has a pending decision
func (c *Correlator) Decide(token Token, command string, forcePrimary bool) (RoutingDecision, error) {
	if token.IsZero() {
		token = types.NewToken()
	}

	// Reserve the token first so a duplicate never advances the replica
	// cursor or counts as a route.
	entry := &pendingDecision{}
	if _, loaded := c.pending.LoadOrStore(token, entry); loaded {
		return RoutingDecision{}, types.ErrDuplicateToken
	}

	decision := c.router.Decide(command, forcePrimary)
	decision.Token = token

	entry.decision = decision
	entry.expires = c.now().Add(c.ttl)
	entry.ready.Store(true)
	c.metrics.SetPendingDecisions(int(c.count.Add(1)))

	return decision, nil
}

// Consume removes and returns the decision stored under token.
//
// Parameters:
//   - token: Identity of the logical operation
//
// Returns:
//   - RoutingDecision: The decision made by Decide
//   - error: types.ErrDecisionNotFound if there is no decision, it was
//     already consumed, or it expired
func (c *Correlator) Consume(token Token) (RoutingDecision, error) {
	v, ok := c.pending.Load(token)
	if !ok {
		return RoutingDecision{}, types.ErrDecisionNotFound
	}
	entry := v.(*pendingDecision)
	if !entry.ready.Load() || !c.pending.CompareAndDelete(token, v) {
		return RoutingDecision{}, types.ErrDecisionNotFound
	}
	c.metrics.SetPendingDecisions(int(c.count.Add(-1)))

	if c.now().After(entry.expires) {
		c.metrics.IncDecisionEvicted()
		c.logger.Debug("routing decision expired before use",
			"token", token.String(),
			"target", entry.decision.Target.Name,
		)

		return RoutingDecision{}, types.ErrDecisionNotFound
	}

	return entry.decision, nil
}

// Discard drops the decision stored under token, if any.
//
// Call it when an operation is abandoned between Decide and Consume.
//
// Returns:
//   - bool: true if a decision was removed
func (c *Correlator) Discard(token Token) bool {
	v, ok := c.pending.Load(token)
	if !ok || !v.(*pendingDecision).ready.Load() || !c.pending.CompareAndDelete(token, v) {
		return false
	}
	c.metrics.SetPendingDecisions(int(c.count.Add(-1)))

	return true
}

// Sweep evicts every expired decision.
//
// Returns:
//   - int: Number of decisions evicted
func (c *Correlator) Sweep() int {
	now := c.now()
	evicted := 0

	c.pending.Range(func(key, value any) bool {
		entry := value.(*pendingDecision)
		if !entry.ready.Load() || !now.After(entry.expires) {
			return true
		}
		// A concurrent Consume may have won; only count what we removed.
		if c.pending.CompareAndDelete(key, value) {
			c.count.Add(-1)
			c.metrics.IncDecisionEvicted()
			evicted++
		}

		return true
	})

	if evicted > 0 {
		c.metrics.SetPendingDecisions(int(c.count.Load()))
		c.logger.Debug("evicted expired routing decisions", "count", evicted)
	}

	return evicted
}

// Pending returns the number of stored decisions, expired ones included
// until they are swept.
func (c *Correlator) Pending() int {
	return int(c.count.Load())
}

// Start launches the background sweeper.
//
// Parameters:
//   - ctx: Lifetime of the sweeper
//
// Returns:
//   - error: types.ErrMonitorAlreadyRunning if already started
func (c *Correlator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return types.ErrMonitorAlreadyRunning
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.gen++
	gen := c.gen

	c.wg.Go(func() {
		defer c.exited(gen)

		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	})

	return nil
}

// exited clears running when the sweeper of generation gen stops on its own,
// for example because the context given to Start was cancelled.
func (c *Correlator) exited(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen == gen {
		c.running = false
	}
}

// Running reports whether the background sweeper is active.
func (c *Correlator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// Stop halts the background sweeper and waits for it to exit.
//
// Stop is safe to call multiple times.
func (c *Correlator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}
