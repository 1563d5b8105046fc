package zl

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/arloliu/splitdb/types"
)

// Logger adapts a zerolog.Logger to types.Logger.
//
// keysAndValues are attached as structured fields; error values render
// through zerolog's error marshaller and non-string keys are dropped.
type Logger struct {
	zl zerolog.Logger
}

var _ types.Logger = (*Logger)(nil)

// New wraps an existing zerolog logger.
//
// Parameters:
//   - logger: The zerolog logger to write through
//
// Returns:
//   - *Logger: A types.Logger backed by logger
//
// Example:
//
//	zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	client, _ := splitdb.NewSQLClient("postgres", primary, replicas,
//	    splitdb.WithLogger(zl.New(zlog)),
//	)
func New(logger zerolog.Logger) *Logger {
	return &Logger{zl: logger.With().Str("component", "splitdb").Logger()}
}

// NewWriter creates a JSON logger with timestamps writing to w.
//
// Parameters:
//   - w: Destination; wrapped with zerolog.SyncWriter for concurrent use
//   - level: Minimum level to emit
//
// Returns:
//   - *Logger: A ready-to-use logger
func NewWriter(w io.Writer, level zerolog.Level) *Logger {
	return New(zerolog.New(zerolog.SyncWriter(w)).Level(level).With().Timestamp().Logger())
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	emit(l.zl.Debug(), msg, keysAndValues)
}

// Info logs at info level.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	emit(l.zl.Info(), msg, keysAndValues)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	emit(l.zl.Warn(), msg, keysAndValues)
}

// Error logs at error level.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	emit(l.zl.Error(), msg, keysAndValues)
}

func emit(event *zerolog.Event, msg string, keysAndValues []any) {
	// A nil event means the level is disabled.
	if event == nil {
		return
	}
	if len(keysAndValues) > 0 {
		event = event.Fields(keysAndValues)
	}
	event.Msg(msg)
}
