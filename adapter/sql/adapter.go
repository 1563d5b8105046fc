package sql

import (
	"context"
	"database/sql"
)

// DB is one physical database target the splitdb client can run commands on.
//
// *sql.DB satisfies it through NewDBAdapter. Tests substitute their own
// implementation to observe which target a command lands on.
type DB interface {
	// ExecContext executes a query without returning any rows.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)

	// QueryContext executes a query that returns rows.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)

	// QueryRowContext executes a query that returns at most one row.
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row

	// BeginTx starts a transaction.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

	// PingContext verifies the connection is alive.
	PingContext(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// dbAdapter wraps *sql.DB to implement the DB interface.
type dbAdapter struct {
	db *sql.DB
}

// NewDBAdapter creates a new DB adapter wrapping a *sql.DB.
//
// Parameters:
//   - db: The underlying sql.DB to wrap
//
// Returns:
//   - DB: An adapter implementing the DB interface
func NewDBAdapter(db *sql.DB) DB {
	return &dbAdapter{db: db}
}

// Open opens a database handle with a registered driver and wraps it.
//
// No connection is made until the first command; use PingContext to check
// reachability.
//
// Parameters:
//   - driver: Driver name as registered with database/sql
//   - address: Driver-specific connection string
//
// Returns:
//   - DB: The wrapped handle
//   - error: Error from sql.Open (usually an unknown driver)
func Open(driver, address string) (DB, error) {
	db, err := sql.Open(driver, address)
	if err != nil {
		return nil, err
	}

	return NewDBAdapter(db), nil
}

// Unwrap returns the *sql.DB behind a DB created by this package, or nil.
func Unwrap(db DB) *sql.DB {
	if a, ok := db.(*dbAdapter); ok {
		return a.db
	}

	return nil
}

// ExecContext executes a query without returning any rows.
func (a *dbAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (a *dbAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (a *dbAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (a *dbAdapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return a.db.BeginTx(ctx, opts)
}

// PingContext verifies the connection is alive.
func (a *dbAdapter) PingContext(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection.
func (a *dbAdapter) Close() error {
	return a.db.Close()
}
