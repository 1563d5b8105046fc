// Package types provides shared types and errors for the splitdb library.
//
// This is a "leaf" package with no imports from other splitdb packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an outgoing command as a read or a write.
type Kind int

const (
	// KindWrite is any command that must run on the primary.
	// It is the zero value so that unclassified commands are routed safely.
	KindWrite Kind = iota
	// KindRead is a command that may be served by a replica.
	KindRead
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if k == KindRead {
		return "read"
	}

	return "write"
}

// Role identifies which side of the topology a target belongs to.
type Role int

const (
	// RolePrimary is the writable primary database.
	RolePrimary Role = iota
	// RoleReplica is a read-only replica.
	RoleReplica
)

// String returns the string representation of the Role.
func (r Role) String() string {
	if r == RoleReplica {
		return "replica"
	}

	return "primary"
}

// Target is a physical connection target chosen by the router.
type Target struct {
	// Address is the connection string used to reach the database.
	// It may contain credentials and must not be logged directly.
	Address string

	// Name is a credential-free display name used in logs and metric labels.
	Name string

	// Role tells whether Address points at the primary or a replica.
	Role Role
}

// IsPrimary reports whether the target is the primary database.
func (t Target) IsPrimary() bool {
	return t.Role == RolePrimary
}

// Token identifies one in-flight logical operation.
//
// A token is minted when a command is prepared and carried to the point
// where a physical connection is opened for that same command.
type Token uuid.UUID

// NewToken returns a fresh random token.
func NewToken() Token {
	return Token(uuid.New())
}

// String returns the canonical UUID text form of the token.
func (t Token) String() string {
	return uuid.UUID(t).String()
}

// IsZero reports whether the token is unset.
func (t Token) IsZero() bool {
	return uuid.UUID(t) == uuid.Nil
}

// RoutingDecision binds a classification and a target to a single operation.
type RoutingDecision struct {
	// Token identifies the operation that owns this decision.
	Token Token

	// Kind is the read/write classification of the command.
	Kind Kind

	// Target is the connection the command must run on.
	Target Target

	// ForcePrimary is true when the caller opted this operation out of
	// read splitting.
	ForcePrimary bool

	// Fallback is true when a read was sent to the primary because no
	// replica was eligible.
	Fallback bool

	// DecidedAt is when the decision was made.
	DecidedAt time.Time
}

// Sentinel errors for common failure scenarios.
var (
	// ErrConfiguration is the base of every ConfigurationError.
	ErrConfiguration = errors.New("splitdb: invalid configuration")

	// ErrClockRegression is the base of every ClockRegressionError.
	ErrClockRegression = errors.New("splitdb: clock moved backwards")

	// ErrNoHealthyReplica indicates that no replica is currently eligible
	// for reads. Routers recover from it by using the primary.
	ErrNoHealthyReplica = errors.New("splitdb: no healthy replica available")

	// ErrDecisionNotFound indicates that no pending decision exists for a
	// token: it was never made, was already consumed, or has expired.
	ErrDecisionNotFound = errors.New("splitdb: routing decision not found")

	// ErrDuplicateToken indicates that a token already has a pending decision.
	ErrDuplicateToken = errors.New("splitdb: token already has a pending decision")

	// ErrSessionClosed indicates an operation was attempted on a closed client.
	ErrSessionClosed = errors.New("splitdb: session is closed")

	// ErrMonitorAlreadyRunning indicates Start was called on a running monitor.
	ErrMonitorAlreadyRunning = errors.New("splitdb: health monitor already running")

	// ErrNilSession indicates that a nil database handle was provided.
	ErrNilSession = errors.New("splitdb: session cannot be nil")
)

// ConfigurationError reports invalid construction-time configuration.
//
// It is fatal at startup and never retried.
type ConfigurationError struct {
	// Field names the offending setting (e.g. "workerID", "replicas").
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "splitdb: invalid configuration: " + e.Field + ": " + e.Reason
}

// Unwrap returns ErrConfiguration for errors.Is compatibility.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ClockRegressionError reports that the wall clock moved backwards further
// than the generator is willing to wait out.
type ClockRegressionError struct {
	// Drift is how far behind the last issued timestamp the clock was.
	Drift time.Duration

	// Last is the last millisecond an ID was issued for.
	Last int64

	// Now is the millisecond observed when the regression was detected.
	Now int64
}

// Error implements the error interface.
func (e *ClockRegressionError) Error() string {
	return "splitdb: clock moved backwards by " + e.Drift.String() +
		" (last=" + strconv.FormatInt(e.Last, 10) +
		", now=" + strconv.FormatInt(e.Now, 10) + ")"
}

// Unwrap returns ErrClockRegression for errors.Is compatibility.
func (e *ClockRegressionError) Unwrap() error {
	return ErrClockRegression
}
