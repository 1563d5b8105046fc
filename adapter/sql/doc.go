// Package sql defines the database handle splitdb routes commands to.
//
// The SQLClient keeps one DB per target (the primary and every replica)
// and hands the one chosen by the router to each command. Handles are
// ordinary database/sql pools; splitdb never multiplexes connections
// itself.
//
//	primary, _ := sqladapter.Open("postgres", primaryDSN)
//	defer primary.Close()
//
// Commands issued directly on a DB bypass routing. Transactions started
// with BeginTx stay on the handle they were started on.
package sql
