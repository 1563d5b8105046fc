package zl

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}

	return out
}

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, zerolog.DebugLevel)

	logger.Debug("routing", "kind", "read")
	logger.Info("replica recovered", "replica", "db2:5432/app")
	logger.Warn("replica probe failed", "replica", "db3:5432/app", "error", errors.New("timeout"))
	logger.Error("replica marked unhealthy", "replica", "db3:5432/app", "failures", 3)

	records := decodeLines(t, &buf)
	require.Len(t, records, 4)

	assert.Equal(t, "debug", records[0]["level"])
	assert.Equal(t, "read", records[0]["kind"])

	assert.Equal(t, "info", records[1]["level"])
	assert.Equal(t, "replica recovered", records[1]["message"])
	assert.Equal(t, "splitdb", records[1]["component"])
	assert.Contains(t, records[1], "time")

	assert.Equal(t, "warn", records[2]["level"])
	assert.Equal(t, "timeout", records[2]["error"])

	assert.Equal(t, "error", records[3]["level"])
	assert.InDelta(t, 3, records[3]["failures"], 0)
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, zerolog.WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "shown", records[0]["message"])
}

func TestLoggerOddKeysAndValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, zerolog.DebugLevel)

	assert.NotPanics(t, func() {
		logger.Info("odd", "dangling")
		logger.Info("non-string key", 42, "value")
	})

	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestNewKeepsExistingContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).With().Str("service", "orders").Logger()

	New(base).Info("hello")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "orders", records[0]["service"])
	assert.Equal(t, "splitdb", records[0]["component"])
}

func TestZerologAccessor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, zerolog.InfoLevel)

	zlog := logger.Zerolog()
	zlog.Info().Msg("direct")
	assert.Contains(t, buf.String(), `"component":"splitdb"`)
}
