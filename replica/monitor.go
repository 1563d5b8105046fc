package replica

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/splitdb/internal/logging"
	"github.com/arloliu/splitdb/internal/metrics"
	"github.com/arloliu/splitdb/types"
)

const (
	// DefaultProbeInterval is how often every replica is probed.
	DefaultProbeInterval = 30 * time.Second

	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 3 * time.Second
)

// MonitorOption configures a HealthMonitor.
type MonitorOption func(*HealthMonitor)

// WithProbeInterval sets the time between probe passes.
//
// Default: 30s
//
// Parameters:
//   - d: Interval; non-positive values keep the default
//
// Returns:
//   - MonitorOption: Configuration option
func WithProbeInterval(d time.Duration) MonitorOption {
	return func(m *HealthMonitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithProbeTimeout sets the deadline applied to each probe.
//
// Default: 3s
//
// Parameters:
//   - d: Timeout; non-positive values keep the default
//
// Returns:
//   - MonitorOption: Configuration option
func WithProbeTimeout(d time.Duration) MonitorOption {
	return func(m *HealthMonitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger for probe failures and health transitions.
func WithLogger(logger types.Logger) MonitorOption {
	return func(m *HealthMonitor) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector types.MetricsCollector) MonitorOption {
	return func(m *HealthMonitor) {
		m.metrics = collector
	}
}

// WithOnTransition registers a callback invoked when a node's health flips.
//
// The callback runs on the probing goroutine; it must not block.
//
// Parameters:
//   - fn: Called with the node and its new health state
//
// Returns:
//   - MonitorOption: Configuration option
func WithOnTransition(fn func(node *Node, healthy bool)) MonitorOption {
	return func(m *HealthMonitor) {
		m.onTransition = fn
	}
}

// HealthMonitor periodically probes every replica of a Set and records the
// result in each node's healthy flag.
//
// Probe failures never escape: errors, timeouts and panics inside a Prober
// are logged and turn into "unhealthy". Draining nodes are probed like any
// other so their health is current when they return to rotation.
type HealthMonitor struct {
	set          *Set
	prober       Prober
	interval     time.Duration
	timeout      time.Duration
	logger       types.Logger
	metrics      types.MetricsCollector
	onTransition func(*Node, bool)

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	gen     uint64
}

// NewHealthMonitor creates a HealthMonitor.
//
// Parameters:
//   - set: Replicas to probe
//   - prober: How to probe a single replica
//   - opts: Optional configuration options
//
// Returns:
//   - *HealthMonitor: A stopped monitor; call Start to begin probing
func NewHealthMonitor(set *Set, prober Prober, opts ...MonitorOption) *HealthMonitor {
	m := &HealthMonitor{
		set:      set,
		prober:   prober,
		interval: DefaultProbeInterval,
		timeout:  DefaultProbeTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger = logging.OrNop(m.logger)
	m.metrics = metrics.OrNop(m.metrics)

	return m
}

// Interval returns the time between probe passes.
func (m *HealthMonitor) Interval() time.Duration { return m.interval }

// Timeout returns the per-probe deadline.
func (m *HealthMonitor) Timeout() time.Duration { return m.timeout }

// Start launches the background probing loop.
//
// The first pass runs immediately, then one pass per interval until ctx is
// cancelled or Stop is called.
//
// Parameters:
//   - ctx: Lifetime of the loop
//
// Returns:
//   - error: types.ErrMonitorAlreadyRunning if already started
func (m *HealthMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return types.ErrMonitorAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.gen++
	gen := m.gen

	m.wg.Go(func() {
		defer m.exited(gen)
		m.run(loopCtx)
	})

	m.logger.Info("replica health monitor started",
		"replicas", m.set.Len(),
		"interval", m.interval,
		"timeout", m.timeout,
	)

	return nil
}

// Stop cancels the probing loop and waits for the in-flight pass to finish.
//
// Stop is safe to call multiple times and on a monitor that never started.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.logger.Info("replica health monitor stopped")
}

// exited clears running when the loop of generation gen ends on its own,
// for example because the context given to Start was cancelled.
func (m *HealthMonitor) exited(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen == gen {
		m.running = false
	}
}

// Running reports whether the background loop is active.
func (m *HealthMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

func (m *HealthMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckNow(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow probes every replica once, concurrently, and returns when all
// probes have finished.
//
// Parameters:
//   - ctx: Parent context for the probes
func (m *HealthMonitor) CheckNow(ctx context.Context) {
	var wg sync.WaitGroup
	for _, node := range m.set.nodes {
		wg.Go(func() {
			m.checkNode(ctx, node)
		})
	}
	wg.Wait()
}

func (m *HealthMonitor) checkNode(ctx context.Context, node *Node) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.safeProbe(probeCtx, node)
	m.metrics.ObserveProbeDuration(node.Name(), time.Since(start).Seconds())

	// A pass interrupted by shutdown says nothing about the replica.
	if err != nil && ctx.Err() != nil {
		return
	}

	healthy := err == nil
	if !healthy {
		m.metrics.IncProbeFailure(node.Name())
		m.logger.Warn("replica probe failed",
			"replica", node.Name(),
			"error", err,
		)
	}

	m.metrics.SetReplicaHealthy(node.Name(), healthy)

	if !node.setHealthy(healthy) {
		return
	}

	if healthy {
		m.logger.Info("replica recovered", "replica", node.Name())
	} else {
		m.logger.Error("replica marked unhealthy", "replica", node.Name())
	}

	if m.onTransition != nil {
		m.onTransition(node, healthy)
	}
}

func (m *HealthMonitor) safeProbe(ctx context.Context, node *Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()

	return m.prober.Probe(ctx, node)
}
