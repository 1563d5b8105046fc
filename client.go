package splitdb

import "github.com/arloliu/splitdb/types"

// Type aliases for convenience - re-export from types package.
type (
	Kind             = types.Kind
	Role             = types.Role
	Target           = types.Target
	Token            = types.Token
	RoutingDecision  = types.RoutingDecision
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export kind constants for convenience.
const (
	KindWrite = types.KindWrite
	KindRead  = types.KindRead
)

// Re-export role constants for convenience.
const (
	RolePrimary = types.RolePrimary
	RoleReplica = types.RoleReplica
)

// NewToken returns a fresh random correlation token.
func NewToken() Token {
	return types.NewToken()
}
