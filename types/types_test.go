package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("workerID", "must be between 0 and 31")

	assert.Contains(t, err.Error(), "workerID")
	assert.Contains(t, err.Error(), "must be between 0 and 31")
	assert.True(t, errors.Is(err, ErrConfiguration))

	wrapped := fmt.Errorf("startup: %w", err)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(wrapped, &cfgErr))
	assert.Equal(t, "workerID", cfgErr.Field)
}

func TestClockRegressionError(t *testing.T) {
	err := &ClockRegressionError{Drift: 50 * time.Millisecond, Last: 1050, Now: 1000}

	assert.Contains(t, err.Error(), "50ms")
	assert.Contains(t, err.Error(), "last=1050")
	assert.Contains(t, err.Error(), "now=1000")
	assert.True(t, errors.Is(err, ErrClockRegression))
	assert.False(t, errors.Is(err, ErrConfiguration))
}

func TestKindAndRoleString(t *testing.T) {
	assert.Equal(t, "read", KindRead.String())
	assert.Equal(t, "write", KindWrite.String())
	assert.Equal(t, KindWrite, Kind(0), "zero value must be the safe classification")

	assert.Equal(t, "primary", RolePrimary.String())
	assert.Equal(t, "replica", RoleReplica.String())
}

func TestToken(t *testing.T) {
	var zero Token
	assert.True(t, zero.IsZero())

	a := NewToken()
	b := NewToken()
	assert.False(t, a.IsZero())
	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 36)
}

func TestTargetIsPrimary(t *testing.T) {
	assert.True(t, Target{Role: RolePrimary}.IsPrimary())
	assert.False(t, Target{Role: RoleReplica}.IsPrimary())
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"no healthy replica", ErrNoHealthyReplica, "no healthy replica"},
		{"decision not found", ErrDecisionNotFound, "decision not found"},
		{"duplicate token", ErrDuplicateToken, "pending decision"},
		{"session closed", ErrSessionClosed, "closed"},
		{"monitor running", ErrMonitorAlreadyRunning, "already running"},
		{"nil session", ErrNilSession, "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.Contains(t, tt.err.Error(), tt.msg)
		})
	}
}
