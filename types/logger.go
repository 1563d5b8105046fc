package types

// Logger is the structured logger used throughout splitdb.
//
// The method set matches zap.SugaredLogger, so a *zap.SugaredLogger can be
// passed directly. contrib/logging/zl adapts a zerolog.Logger.
//
// keysAndValues are alternating key/value pairs:
//
//	logger.Warn("replica probe failed", "replica", name, "error", err.Error())
//
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}
