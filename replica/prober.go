package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// DefaultProbeQuery is the statement SQLProber runs against each replica.
const DefaultProbeQuery = "SELECT 1"

// Prober checks whether one replica can serve queries.
//
// Implementations must honor ctx cancellation. A nil error means healthy.
type Prober interface {
	Probe(ctx context.Context, node *Node) error
}

// ProbeFunc adapts a plain function to the Prober interface.
type ProbeFunc func(ctx context.Context, node *Node) error

// Probe calls f(ctx, node).
func (f ProbeFunc) Probe(ctx context.Context, node *Node) error {
	return f(ctx, node)
}

// Pinger is the subset of *sql.DB used by PingProber.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingProber pings handles the caller already owns.
//
// The lookup function maps a node to its handle; nodes without a handle
// are reported unhealthy.
type PingProber struct {
	lookup func(*Node) Pinger
}

// NewPingProber creates a PingProber.
func NewPingProber(lookup func(*Node) Pinger) *PingProber {
	return &PingProber{lookup: lookup}
}

// Probe pings the node's handle.
func (p *PingProber) Probe(ctx context.Context, node *Node) error {
	pinger := p.lookup(node)
	if pinger == nil {
		return fmt.Errorf("no connection handle for replica %s", node.Name())
	}

	return pinger.PingContext(ctx)
}

// SQLProberOption configures a SQLProber.
type SQLProberOption func(*SQLProber)

// WithProbeQuery sets the statement used to check a replica.
//
// Default: "SELECT 1". An empty query pings instead of running a
// statement, for drivers whose dialect has no bare SELECT.
//
// Parameters:
//   - query: Statement to execute
//
// Returns:
//   - SQLProberOption: Configuration option
func WithProbeQuery(query string) SQLProberOption {
	return func(p *SQLProber) {
		p.query = query
	}
}

// SQLProber probes replicas through database/sql.
//
// It keeps a dedicated single-connection handle per replica address,
// opened on first use.
type SQLProber struct {
	driver string
	query  string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewSQLProber creates a SQLProber for a registered database/sql driver.
//
// Parameters:
//   - driver: Driver name as passed to sql.Open (e.g. "postgres", "mysql")
//   - opts: Optional configuration options
//
// Returns:
//   - *SQLProber: A prober; Close releases its handles
func NewSQLProber(driver string, opts ...SQLProberOption) *SQLProber {
	p := &SQLProber{
		driver: driver,
		query:  DefaultProbeQuery,
		dbs:    make(map[string]*sql.DB),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe runs the probe query against the node.
func (p *SQLProber) Probe(ctx context.Context, node *Node) error {
	db, err := p.handle(node.Address())
	if err != nil {
		return err
	}

	if p.query == "" {
		return db.PingContext(ctx)
	}

	var discard any
	if err := db.QueryRowContext(ctx, p.query).Scan(&discard); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	return nil
}

func (p *SQLProber) handle(address string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.dbs[address]; ok {
		return db, nil
	}

	db, err := sql.Open(p.driver, address)
	if err != nil {
		return nil, fmt.Errorf("open probe connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	p.dbs[address] = db

	return db, nil
}

// Close closes every handle the prober opened.
func (p *SQLProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for address, db := range p.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.dbs, address)
	}

	return errors.Join(errs...)
}
