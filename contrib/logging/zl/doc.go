// Package zl provides a zerolog-backed implementation of the Logger interface.
//
//	logger := zl.NewWriter(os.Stderr, zerolog.InfoLevel)
//	client, _ := splitdb.NewSQLClient("postgres", primary, replicas,
//	    splitdb.WithLogger(logger),
//	)
//
// Every record carries component="splitdb" so library output can be
// filtered from application logs.
package zl
