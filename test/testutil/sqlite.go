package testutil

import (
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"github.com/stretchr/testify/require"
)

// SQLiteDriver is the database/sql driver name registered by go-sqlite3.
const SQLiteDriver = "sqlite3"

// SQLiteTopology is a primary and replicas backed by separate SQLite files.
//
// Every database holds a table whoami(name TEXT) with a single row naming
// the database ("primary", "replica-0", ...), plus an empty table
// events(id INTEGER). Selecting from whoami shows which target served a
// read; counting events shows where writes landed.
type SQLiteTopology struct {
	Primary  string
	Replicas []string
}

// NewSQLiteTopology creates the database files under t.TempDir().
//
// Parameters:
//   - t: The testing context
//   - replicas: Number of replica databases
//
// Returns:
//   - SQLiteTopology: DSNs usable with the "sqlite3" driver
func NewSQLiteTopology(t *testing.T, replicas int) SQLiteTopology {
	t.Helper()

	dir := t.TempDir()
	topo := SQLiteTopology{
		Primary: seedSQLite(t, filepath.Join(dir, "primary.db"), "primary"),
	}
	for i := range replicas {
		name := "replica-" + strconv.Itoa(i)
		topo.Replicas = append(topo.Replicas, seedSQLite(t, filepath.Join(dir, name+".db"), name))
	}

	return topo
}

func seedSQLite(t *testing.T, path, name string) string {
	t.Helper()

	dsn := "file:" + path + "?_busy_timeout=5000"

	db, err := sql.Open(SQLiteDriver, dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		"CREATE TABLE whoami (name TEXT NOT NULL)",
		"CREATE TABLE events (id INTEGER NOT NULL)",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	_, err = db.Exec("INSERT INTO whoami (name) VALUES (?)", name)
	require.NoError(t, err)

	return dsn
}

// CountRows returns SELECT COUNT(*) FROM table on the database at dsn.
func CountRows(t *testing.T, dsn, table string) int {
	t.Helper()

	db, err := sql.Open(SQLiteDriver, dsn)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))

	return n
}
