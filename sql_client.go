package splitdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	sqladapter "github.com/arloliu/splitdb/adapter/sql"
	"github.com/arloliu/splitdb/replica"
	"github.com/arloliu/splitdb/types"
)

// SQLClient is a database/sql-shaped client that sends reads to replicas
// and everything else to the primary.
//
// Every command passes through two steps. Prepare classifies the command
// and stores a routing decision under the operation's Token; Open consumes
// that decision and returns the handle to run on. The high-level methods
// (ExecContext, QueryContext, QueryRowContext) run both steps for you.
//
// Limitations:
//   - Classification looks at the leading keyword only
//   - Replica lag is not tracked; use ContextWithForcePrimary for reads
//     that must see the caller's own writes
//   - Transactions always run on the primary
type SQLClient struct {
	router     *Router
	correlator *Correlator
	monitor    *replica.HealthMonitor
	config     *ClientConfig
	stats      *statsTracker

	primary  sqladapter.DB
	handles  map[string]sqladapter.DB // target address -> handle
	replicas []sqladapter.DB          // aligned with router.Set().Nodes()

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewSQLClient opens one handle per target and starts routing.
//
// Parameters:
//   - driver: database/sql driver name (e.g. "postgres", "mysql", "sqlite3")
//   - primaryDSN: Connection string of the primary
//   - replicaDSNs: Connection strings of the replicas
//   - opts: Optional configuration options
//
// Returns:
//   - *SQLClient: A running client; Close releases every handle
//   - error: *types.ConfigurationError for a bad topology, or the error of
//     the first handle that failed to open
func NewSQLClient(driver, primaryDSN string, replicaDSNs []string, opts ...Option) (*SQLClient, error) {
	config := newConfig(opts)

	set, err := replica.NewSet(primaryDSN, replicaDSNs)
	if err != nil {
		return nil, err
	}

	opened := make([]sqladapter.DB, 0, len(replicaDSNs)+1)
	closeOpened := func() {
		for _, db := range opened {
			_ = db.Close()
		}
	}

	primary, err := config.Opener(driver, primaryDSN)
	if err != nil {
		return nil, fmt.Errorf("open primary %s: %w", set.Primary().Name, err)
	}
	opened = append(opened, primary)

	replicas := make([]sqladapter.DB, 0, len(replicaDSNs))
	for _, node := range set.Nodes() {
		db, err := config.Opener(driver, node.Address())
		if err != nil {
			closeOpened()
			return nil, fmt.Errorf("open replica %s: %w", node.Name(), err)
		}
		opened = append(opened, db)
		replicas = append(replicas, db)
	}

	client, err := newSQLClient(set, primary, replicas, config)
	if err != nil {
		closeOpened()
		return nil, err
	}

	return client, nil
}

// NewSQLClientFromDB creates a client over handles the caller opened.
//
// The handles are addressed as "primary" and "replica-0", "replica-1", ...
// in logs, metrics and drain requests. Close closes them.
//
// Parameters:
//   - primary: Primary *sql.DB (required)
//   - replicas: Replica *sql.DB handles (at least one)
//   - opts: Optional configuration options
//
// Returns:
//   - *SQLClient: A running client
//   - error: types.ErrNilSession if any handle is nil, or
//     *types.ConfigurationError if replicas is empty
func NewSQLClientFromDB(primary *sql.DB, replicas []*sql.DB, opts ...Option) (*SQLClient, error) {
	if primary == nil {
		return nil, types.ErrNilSession
	}

	addresses := make([]string, len(replicas))
	handles := make([]sqladapter.DB, len(replicas))
	for i, db := range replicas {
		if db == nil {
			return nil, types.ErrNilSession
		}
		addresses[i] = "replica-" + strconv.Itoa(i)
		handles[i] = sqladapter.NewDBAdapter(db)
	}

	set, err := replica.NewSet("primary", addresses)
	if err != nil {
		return nil, err
	}

	return newSQLClient(set, sqladapter.NewDBAdapter(primary), handles, newConfig(opts))
}

func newSQLClient(set *replica.Set, primary sqladapter.DB, replicas []sqladapter.DB, config *ClientConfig) (*SQLClient, error) {
	router := newRouter(set, config)

	c := &SQLClient{
		router:     router,
		correlator: newCorrelator(router, config),
		config:     config,
		stats:      newStatsTracker(config.MaxTrackedStatements),
		primary:    primary,
		replicas:   replicas,
		handles:    make(map[string]sqladapter.DB, len(replicas)+1),
	}

	c.handles[set.Primary().Address] = primary
	for i, node := range set.Nodes() {
		c.handles[node.Address()] = replicas[i]
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if err := c.correlator.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	if !config.DisableHealthMonitor {
		prober := config.Prober
		if prober == nil {
			prober = replica.NewPingProber(c.replicaHandle)
		}
		c.monitor = replica.NewHealthMonitor(set, prober,
			replica.WithProbeInterval(config.ProbeInterval),
			replica.WithProbeTimeout(config.ProbeTimeout),
			replica.WithLogger(config.Logger),
			replica.WithMetrics(config.Metrics),
		)
		if err := c.monitor.Start(ctx); err != nil {
			c.correlator.Stop()
			cancel()
			return nil, err
		}
	}

	if config.TopologyWatcher != nil {
		updates := config.TopologyWatcher.Watch(ctx)
		c.reconcileTopology()
		c.wg.Go(func() {
			c.consumeTopology(ctx, updates)
		})
	}

	config.Logger.Info("splitdb client started",
		"primary", set.Primary().Name,
		"replicas", set.Len(),
		"healthMonitor", !config.DisableHealthMonitor,
	)

	return c, nil
}

// replicaHandle maps a node to the handle opened for it.
func (c *SQLClient) replicaHandle(node *replica.Node) replica.Pinger {
	db, ok := c.handles[node.Address()]
	if !ok {
		return nil
	}

	return db
}

func (c *SQLClient) consumeTopology(ctx context.Context, updates <-chan TopologyUpdate) {
	set := c.router.Set()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Resync {
				c.reconcileTopology()
				continue
			}

			node, found := set.Lookup(update.Replica)
			if !found {
				c.config.Logger.Warn("drain update for unknown replica", "replica", update.Replica)
				continue
			}

			set.SetDraining(update.Replica, update.Draining)
			c.config.Metrics.SetReplicaDraining(node.Name(), update.Draining)
			if update.Draining {
				c.config.Logger.Info("replica drained", "replica", node.Name(), "reason", update.Reason)
			} else {
				c.config.Logger.Info("replica back in rotation", "replica", node.Name())
			}
		}
	}
}

// reconcileTopology makes every replica's draining flag match the watcher's
// full drain state. It is a no-op for watchers without DrainSnapshotter.
func (c *SQLClient) reconcileTopology() {
	snapshotter, ok := c.config.TopologyWatcher.(DrainSnapshotter)
	if !ok {
		return
	}

	drained := snapshotter.DrainedReplicas()
	for _, node := range c.router.Set().Nodes() {
		reason, draining := drained[node.Name()]
		if !draining {
			reason, draining = drained[node.Address()]
		}

		if node.Draining() == draining {
			continue
		}
		c.router.Set().SetDraining(node.Address(), draining)
		c.config.Metrics.SetReplicaDraining(node.Name(), draining)
		if draining {
			c.config.Logger.Info("replica drained", "replica", node.Name(), "reason", reason)
		} else {
			c.config.Logger.Info("replica back in rotation", "replica", node.Name())
		}
	}
}

// Router returns the router the client uses.
func (c *SQLClient) Router() *Router {
	return c.router
}

// Correlator returns the correlator the client stores decisions in.
func (c *SQLClient) Correlator() *Correlator {
	return c.correlator
}

// Prepare classifies a command and stores its routing decision.
//
// The token is taken from ctx (see ContextWithToken) or minted. Reads are
// kept on the primary when ctx says so (see ContextWithForcePrimary).
//
// Parameters:
//   - ctx: Carries the optional token and force-primary flag
//   - query: Command text
//
// Returns:
//   - Token: Identity to pass to Open
//   - RoutingDecision: The stored decision
//   - error: types.ErrSessionClosed, or types.ErrDuplicateToken if the
//     token in ctx already has a pending decision
func (c *SQLClient) Prepare(ctx context.Context, query string) (Token, RoutingDecision, error) {
	if c.closed.Load() {
		return Token{}, RoutingDecision{}, types.ErrSessionClosed
	}

	token, ok := TokenFromContext(ctx)
	if !ok {
		token = types.NewToken()
	}

	decision, err := c.correlator.Decide(token, query, ForcePrimaryFromContext(ctx))
	if err != nil {
		return Token{}, RoutingDecision{}, err
	}

	return decision.Token, decision, nil
}

// Open consumes the decision stored by Prepare and returns the handle the
// command must run on.
//
// Parameters:
//   - ctx: Context of the operation
//   - token: Token returned by Prepare
//
// Returns:
//   - sqladapter.DB: Handle for the decided target
//   - RoutingDecision: The consumed decision
//   - error: types.ErrSessionClosed, or types.ErrDecisionNotFound if the
//     decision was never made, already consumed, or expired
func (c *SQLClient) Open(ctx context.Context, token Token) (sqladapter.DB, RoutingDecision, error) {
	if c.closed.Load() {
		return nil, RoutingDecision{}, types.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		c.correlator.Discard(token)
		return nil, RoutingDecision{}, err
	}

	decision, err := c.correlator.Consume(token)
	if err != nil {
		return nil, RoutingDecision{}, err
	}

	db, ok := c.handles[decision.Target.Address]
	if !ok {
		return nil, RoutingDecision{}, fmt.Errorf("splitdb: no handle for target %s", decision.Target.Name)
	}

	return db, decision, nil
}

// route runs Prepare and Open back to back.
func (c *SQLClient) route(ctx context.Context, query string) (sqladapter.DB, RoutingDecision, error) {
	token, _, err := c.Prepare(ctx, query)
	if err != nil {
		return nil, RoutingDecision{}, err
	}

	return c.Open(ctx, token)
}

func (c *SQLClient) observe(query string, decision RoutingDecision, start time.Time, err error) {
	elapsed := time.Since(start)
	failed := err != nil && !errors.Is(err, sql.ErrNoRows)

	c.config.Metrics.ObserveCommandDuration(decision.Kind, decision.Target.Name, elapsed.Seconds())
	if failed {
		c.config.Metrics.IncCommandError(decision.Kind, decision.Target.Name)
		c.config.Logger.Debug("command failed",
			"kind", decision.Kind.String(),
			"target", decision.Target.Name,
			"error", err,
		)
	}
	c.stats.record(query, decision.Kind, elapsed, failed)
}

// ExecContext executes a command on the target chosen for it.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: SQL statement to execute
//   - args: Arguments for the query
//
// Returns:
//   - sql.Result: Driver result
//   - error: Routing error or driver error, unchanged
func (c *SQLClient) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, decision, err := c.route(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := db.ExecContext(ctx, query, args...)
	c.observe(query, decision, start, err)

	return result, err
}

// Exec executes a command using a background context.
func (c *SQLClient) Exec(query string, args ...any) (sql.Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

// QueryContext runs a query on the target chosen for it.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: SQL statement to execute
//   - args: Arguments for the query
//
// Returns:
//   - *sql.Rows: Result rows (caller must close)
//   - error: Routing error or driver error, unchanged
func (c *SQLClient) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db, decision, err := c.route(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, query, args...)
	c.observe(query, decision, start, err)

	return rows, err
}

// Query runs a query using a background context.
func (c *SQLClient) Query(query string, args ...any) (*sql.Rows, error) {
	return c.QueryContext(context.Background(), query, args...)
}

// QueryRowContext runs a query expected to return at most one row.
//
// *sql.Row cannot carry an arbitrary error, so a routing failure
// (types.ErrSessionClosed, types.ErrDuplicateToken, ...) is logged at warn
// level and the returned Row fails on Scan with a database/sql error
// instead: "sql: database is closed" after Close, context.Canceled
// otherwise. Use QueryContext when the routing error itself matters.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: SQL statement to execute
//   - args: Arguments for the query
//
// Returns:
//   - *sql.Row: Single row result (never nil)
func (c *SQLClient) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	db, decision, err := c.route(ctx, query)
	if err != nil {
		c.config.Logger.Warn("query row not routed", "error", err)

		canceledCtx, cancel := context.WithCancel(ctx)
		cancel()

		return c.primary.QueryRowContext(canceledCtx, query, args...)
	}

	start := time.Now()
	row := db.QueryRowContext(ctx, query, args...)
	c.observe(query, decision, start, row.Err())

	return row
}

// QueryRow runs a single-row query using a background context.
func (c *SQLClient) QueryRow(query string, args ...any) *sql.Row {
	return c.QueryRowContext(context.Background(), query, args...)
}

// BeginTx starts a transaction on the primary.
//
// Statements inside the transaction are not classified; a read-only
// transaction still runs on the primary.
//
// Parameters:
//   - ctx: Context for the transaction
//   - opts: Transaction options, may be nil
//
// Returns:
//   - *sql.Tx: The transaction
//   - error: types.ErrSessionClosed or driver error
func (c *SQLClient) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if c.closed.Load() {
		return nil, types.ErrSessionClosed
	}

	target := c.router.RouteForWrite()
	tx, err := c.primary.BeginTx(ctx, opts)
	if err != nil {
		c.config.Metrics.IncCommandError(types.KindWrite, target.Name)
	}

	return tx, err
}

// PingContext checks that the primary is reachable.
//
// Replica reachability is tracked by the health monitor instead.
func (c *SQLClient) PingContext(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrSessionClosed
	}

	return c.primary.PingContext(ctx)
}

// Ping checks that the primary is reachable using a background context.
func (c *SQLClient) Ping() error {
	return c.PingContext(context.Background())
}

// Stats returns per-statement execution statistics, slowest first.
func (c *SQLClient) Stats() []QueryStats {
	return c.stats.snapshot()
}

// UntrackedStatements returns how many executions were not recorded
// because the statistics table was full.
func (c *SQLClient) UntrackedStatements() int64 {
	return c.stats.untracked()
}

// ResetStats clears the statistics table.
func (c *SQLClient) ResetStats() {
	c.stats.reset()
}

// IsClosed reports whether Close has been called.
func (c *SQLClient) IsClosed() bool {
	return c.closed.Load()
}

// Close stops background work and closes every handle. A configured Prober
// that implements io.Closer is closed as well.
//
// After Close is called, the client cannot be reused.
func (c *SQLClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if c.monitor != nil {
		c.monitor.Stop()
	}
	c.correlator.Stop()
	c.cancel()
	c.wg.Wait()

	errs := []error{c.primary.Close()}
	for _, db := range c.replicas {
		errs = append(errs, db.Close())
	}
	if closer, ok := c.config.Prober.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}

	c.config.Logger.Info("splitdb client closed")

	return errors.Join(errs...)
}
