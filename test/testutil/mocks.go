package testutil

import (
	"fmt"
	"sync"

	"github.com/arloliu/splitdb/types"
)

// LogEntry is one message captured by RecordingLogger.
type LogEntry struct {
	Level         string
	Message       string
	KeysAndValues []any
}

// Field returns the value logged under key, if any.
func (e LogEntry) Field(key string) (any, bool) {
	for i := 0; i+1 < len(e.KeysAndValues); i += 2 {
		if k, ok := e.KeysAndValues[i].(string); ok && k == key {
			return e.KeysAndValues[i+1], true
		}
	}

	return nil, false
}

// RecordingLogger is a types.Logger that keeps every message for assertions.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ types.Logger = (*RecordingLogger)(nil)

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) record(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{
		Level:         level,
		Message:       msg,
		KeysAndValues: append([]any(nil), keysAndValues...),
	})
}

// Debug records a debug message.
func (l *RecordingLogger) Debug(msg string, keysAndValues ...any) {
	l.record("debug", msg, keysAndValues)
}

// Info records an info message.
func (l *RecordingLogger) Info(msg string, keysAndValues ...any) {
	l.record("info", msg, keysAndValues)
}

// Warn records a warning.
func (l *RecordingLogger) Warn(msg string, keysAndValues ...any) {
	l.record("warn", msg, keysAndValues)
}

// Error records an error.
func (l *RecordingLogger) Error(msg string, keysAndValues ...any) {
	l.record("error", msg, keysAndValues)
}

// Entries returns a copy of everything recorded so far.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]LogEntry(nil), l.entries...)
}

// Messages returns the messages logged at level.
func (l *RecordingLogger) Messages(level string) []string {
	var msgs []string
	for _, e := range l.Entries() {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}

	return msgs
}

// Contains reports whether any entry at level has the given message.
func (l *RecordingLogger) Contains(level, msg string) bool {
	for _, m := range l.Messages(level) {
		if m == msg {
			return true
		}
	}

	return false
}

// Text renders every argument of every entry, for substring checks such as
// "no password ever reaches the log".
func (l *RecordingLogger) Text() string {
	var out string
	for _, e := range l.Entries() {
		out += e.Level + " " + e.Message + fmt.Sprint(e.KeysAndValues...) + "\n"
	}

	return out
}
