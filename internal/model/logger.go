package model

//
// Logging
//

// DebugLogger is the logger used by code that only emits debug
// messages, e.g., the per-backend query tracing.
type DebugLogger interface {
	Debug(msg string)
	Debugf(format string, v ...interface{})
}

// InfoLogger extends [DebugLogger] with informational messages, which
// we use for fallbacks and slow operations.
type InfoLogger interface {
	DebugLogger
	Info(msg string)
	Infof(format string, v ...interface{})
}

// Logger is the logger used by the engine, the backends and the
// HTTP API. The apex/log package-level logger implements it.
type Logger interface {
	InfoLogger

	// Warn and Warnf report failed queries and unhealthy backends.
	Warn(msg string)
	Warnf(format string, v ...interface{})
}

// DiscardLogger is a [Logger] ignoring every message.
var DiscardLogger Logger = discardLogger{}

type discardLogger struct{}

func (discardLogger) Debug(msg string)                       {}
func (discardLogger) Debugf(format string, v ...interface{}) {}
func (discardLogger) Info(msg string)                        {}
func (discardLogger) Infof(format string, v ...interface{})  {}
func (discardLogger) Warn(msg string)                        {}
func (discardLogger) Warnf(format string, v ...interface{})  {}

// ErrorToStringOrOK returns the error string or "ok" when err is nil, so
// an operation outcome can be logged with a single format string.
func ErrorToStringOrOK(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// ValidLoggerOrDefault returns logger when not nil and [DiscardLogger] otherwise.
func ValidLoggerOrDefault(logger Logger) Logger {
	if logger != nil {
		return logger
	}
	return DiscardLogger
}
