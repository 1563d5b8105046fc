package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresDriver is the database/sql driver name registered by lib/pq.
const PostgresDriver = "postgres"

// PostgresOptions configures the PostgreSQL container.
type PostgresOptions struct {
	// Image is the PostgreSQL image to use. Defaults to "postgres:16-alpine".
	Image string
	// User and Password are the superuser credentials.
	User     string
	Password string
}

// DefaultPostgresOptions returns default options for the PostgreSQL container.
func DefaultPostgresOptions() PostgresOptions {
	return PostgresOptions{
		Image:    "postgres:16-alpine",
		User:     "splitdb",
		Password: "splitdb",
	}
}

// PostgresServer wraps a PostgreSQL test container.
//
// One server hosts several databases; tests treat each database as a
// separate primary or replica target.
type PostgresServer struct {
	Container testcontainers.Container
	Host      string
	Port      string

	opts  PostgresOptions
	admin *sql.DB
}

// StartPostgres starts a PostgreSQL container.
//
// The caller must call Terminate when done; integration suites share one
// server across tests from TestMain.
//
// Parameters:
//   - ctx: Context for container operations
//   - opts: Optional configuration (nil uses defaults)
//
// Returns:
//   - *PostgresServer: Server with connection details
//   - error: Error if the container fails to start
func StartPostgres(ctx context.Context, opts *PostgresOptions) (*PostgresServer, error) {
	if opts == nil {
		defaults := DefaultPostgresOptions()
		opts = &defaults
	}

	req := testcontainers.ContainerRequest{
		Image:        opts.Image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     opts.User,
			"POSTGRES_PASSWORD": opts.Password,
			"POSTGRES_DB":       "postgres",
		},
		// The entrypoint restarts the server once after init, so the
		// ready line appears twice.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	srv := &PostgresServer{
		Container: container,
		Host:      host,
		Port:      port.Port(),
		opts:      *opts,
	}

	srv.admin, err = sql.Open(PostgresDriver, srv.DSN("postgres"))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	if err := srv.admin.PingContext(ctx); err != nil {
		_ = srv.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return srv, nil
}

// DSN returns a postgres URL for the named database.
func (p *PostgresServer) DSN(database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.opts.User, p.opts.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     "/" + database,
		RawQuery: "sslmode=disable&connect_timeout=5",
	}

	return u.String()
}

// CreateDatabase creates an empty database and returns its DSN.
//
// Parameters:
//   - ctx: Context for the statement
//   - name: Database name; must be a valid unquoted identifier
//
// Returns:
//   - string: DSN of the new database
//   - error: Error from CREATE DATABASE
func (p *PostgresServer) CreateDatabase(ctx context.Context, name string) (string, error) {
	if _, err := p.admin.ExecContext(ctx, "CREATE DATABASE "+name); err != nil {
		return "", fmt.Errorf("create database %s: %w", name, err)
	}

	return p.DSN(name), nil
}

// DropDatabase drops a database, terminating open connections to it.
func (p *PostgresServer) DropDatabase(ctx context.Context, name string) error {
	_, err := p.admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+name+" WITH (FORCE)")

	return err
}

// Terminate closes the admin connection and stops the container.
func (p *PostgresServer) Terminate(ctx context.Context) error {
	if p.admin != nil {
		_ = p.admin.Close()
	}

	return p.Container.Terminate(ctx)
}
