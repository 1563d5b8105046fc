package splitdb

import (
	"time"

	sqladapter "github.com/arloliu/splitdb/adapter/sql"
	"github.com/arloliu/splitdb/internal/logging"
	"github.com/arloliu/splitdb/internal/metrics"
	"github.com/arloliu/splitdb/policy"
	"github.com/arloliu/splitdb/replica"
)

const (
	// DefaultDecisionTTL is how long an unconsumed routing decision is kept.
	DefaultDecisionTTL = 30 * time.Second

	// DefaultMaxTrackedStatements bounds the per-statement statistics table.
	DefaultMaxTrackedStatements = 1000
)

// Opener opens the handle for one target.
//
// The default is sqladapter.Open, which calls sql.Open.
type Opener func(driver, address string) (sqladapter.DB, error)

// ClientConfig holds configuration for the Router, Correlator and SQLClient.
type ClientConfig struct {
	Classifier           Classifier
	Prober               replica.Prober
	ProbeInterval        time.Duration
	ProbeTimeout         time.Duration
	DisableHealthMonitor bool
	DecisionTTL          time.Duration
	SweepInterval        time.Duration
	TopologyWatcher      TopologyWatcher
	Opener               Opener
	MaxTrackedStatements int
	Metrics              MetricsCollector
	Logger               Logger
}

// DefaultConfig returns a ClientConfig with sensible defaults.
//
// Defaults:
//   - Classifier: policy.KeywordClassifier (leading SELECT is a read)
//   - ProbeInterval: 30s, ProbeTimeout: 3s
//   - DecisionTTL: 30s, SweepInterval: DecisionTTL
//   - Opener: sqladapter.Open
//   - MaxTrackedStatements: 1000
//
// Returns:
//   - *ClientConfig: Configuration with default settings
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Classifier:           policy.NewKeywordClassifier(),
		ProbeInterval:        replica.DefaultProbeInterval,
		ProbeTimeout:         replica.DefaultProbeTimeout,
		DecisionTTL:          DefaultDecisionTTL,
		Opener:               sqladapter.Open,
		MaxTrackedStatements: DefaultMaxTrackedStatements,
		Metrics:              metrics.NewNopMetrics(),
		Logger:               logging.NewNopLogger(),
	}
}

// newConfig applies opts over DefaultConfig and repairs nil collaborators.
func newConfig(opts []Option) *ClientConfig {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Classifier == nil {
		config.Classifier = policy.NewKeywordClassifier()
	}
	if config.Opener == nil {
		config.Opener = sqladapter.Open
	}
	if config.DecisionTTL <= 0 {
		config.DecisionTTL = DefaultDecisionTTL
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = config.DecisionTTL
	}
	config.Metrics = metrics.OrNop(config.Metrics)
	config.Logger = logging.OrNop(config.Logger)

	return config
}

// Option configures a ClientConfig.
type Option func(*ClientConfig)

// WithClassifier replaces the read/write classifier.
//
// Parameters:
//   - classifier: The classifier to use
//
// Returns:
//   - Option: Configuration option
func WithClassifier(classifier Classifier) Option {
	return func(c *ClientConfig) {
		c.Classifier = classifier
	}
}

// WithProber sets how the SQLClient health monitor checks replicas.
//
// By default the client pings its own replica handles. Use
// replica.NewSQLProber to run a real query instead.
//
// Parameters:
//   - prober: The prober implementation
//
// Returns:
//   - Option: Configuration option
func WithProber(prober replica.Prober) Option {
	return func(c *ClientConfig) {
		c.Prober = prober
	}
}

// WithProbeInterval sets the time between health probe passes.
//
// Default: 30s
//
// Parameters:
//   - d: Interval between passes
//
// Returns:
//   - Option: Configuration option
func WithProbeInterval(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.ProbeInterval = d
	}
}

// WithProbeTimeout sets the deadline for each health probe.
//
// Default: 3s
//
// Parameters:
//   - d: Per-probe timeout
//
// Returns:
//   - Option: Configuration option
func WithProbeTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.ProbeTimeout = d
	}
}

// WithoutHealthMonitor disables background probing in the SQLClient.
//
// Replicas then stay healthy unless the caller runs its own
// replica.HealthMonitor against Router().Set().
//
// Returns:
//   - Option: Configuration option
func WithoutHealthMonitor() Option {
	return func(c *ClientConfig) {
		c.DisableHealthMonitor = true
	}
}

// WithDecisionTTL sets how long a prepared routing decision waits to be
// consumed before it is evicted.
//
// Default: 30s
//
// Parameters:
//   - ttl: Lifetime of an unconsumed decision
//
// Returns:
//   - Option: Configuration option
func WithDecisionTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.DecisionTTL = ttl
	}
}

// WithSweepInterval sets how often expired decisions are evicted.
//
// Default: the decision TTL
//
// Parameters:
//   - d: Interval between sweeps
//
// Returns:
//   - Option: Configuration option
func WithSweepInterval(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.SweepInterval = d
	}
}

// WithTopologyWatcher sets the source of replica drain updates.
//
// Parameters:
//   - watcher: The topology watcher implementation
//
// Returns:
//   - Option: Configuration option
func WithTopologyWatcher(watcher TopologyWatcher) Option {
	return func(c *ClientConfig) {
		c.TopologyWatcher = watcher
	}
}

// WithOpener replaces how NewSQLClient opens target handles.
//
// Parameters:
//   - opener: Function returning a handle for a driver and address
//
// Returns:
//   - Option: Configuration option
func WithOpener(opener Opener) Option {
	return func(c *ClientConfig) {
		c.Opener = opener
	}
}

// WithMaxTrackedStatements bounds how many distinct statements Stats keeps.
//
// Statements first seen after the limit is reached are not tracked.
// Zero disables statistics.
//
// Default: 1000
//
// Parameters:
//   - n: Maximum number of distinct statements
//
// Returns:
//   - Option: Configuration option
func WithMaxTrackedStatements(n int) Option {
	return func(c *ClientConfig) {
		c.MaxTrackedStatements = n
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
// Use contrib/metrics/vm.New() for VictoriaMetrics integration.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
//
// Example:
//
//	import vmmetrics "github.com/arloliu/splitdb/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	client, _ := splitdb.NewSQLClient("postgres", primary, replicas,
//	    splitdb.WithMetrics(collector),
//	)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *ClientConfig) {
		c.Metrics = collector
	}
}

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is compatible with zap.SugaredLogger; a zerolog
// adapter lives in contrib/logging/zl.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}
