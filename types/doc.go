// Package types provides shared types and error definitions for the splitdb library.
//
// This is a leaf package with zero splitdb imports to prevent import cycles.
// All packages in splitdb can safely import this package.
//
// # Types
//
// Kind classifies a command:
//
//	const (
//	    KindWrite Kind = iota // zero value, routed to the primary
//	    KindRead
//	)
//
// Target names a physical connection and its Role (RolePrimary or RoleReplica).
// RoutingDecision binds a Kind and Target to the Token of one in-flight operation.
//
// # Errors
//
// Two typed errors cross component boundaries:
//
//   - ConfigurationError: invalid ids, empty replica list, missing primary
//   - ClockRegressionError: the clock moved backwards beyond tolerance
//
// Both unwrap to a sentinel so callers can use errors.Is:
//
//	if errors.Is(err, types.ErrClockRegression) {
//	    // retry later
//	}
//
// Other sentinels:
//
//   - ErrNoHealthyReplica: internal to routing, always recovered by using the primary
//   - ErrDecisionNotFound: no pending decision for a token
//   - ErrDuplicateToken: a token was decided twice
//   - ErrSessionClosed: the client was closed
//   - ErrMonitorAlreadyRunning: the health monitor was started twice
package types
