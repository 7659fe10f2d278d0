package mocks

import "github.com/ooni/geoquery/internal/model"

// Logger allows mocking a [model.Logger].
type Logger struct {
	MockDebugf func(format string, v ...any)
	MockDebug  func(message string)
	MockInfof  func(format string, v ...any)
	MockInfo   func(message string)
	MockWarnf  func(format string, v ...any)
	MockWarn   func(message string)
}

var _ model.Logger = &Logger{}

// Debugf calls MockDebugf.
func (lo *Logger) Debugf(format string, v ...any) {
	lo.MockDebugf(format, v...)
}

// Debug calls MockDebug.
func (lo *Logger) Debug(message string) {
	lo.MockDebug(message)
}

// Infof calls MockInfof.
func (lo *Logger) Infof(format string, v ...any) {
	lo.MockInfof(format, v...)
}

// Info calls MockInfo.
func (lo *Logger) Info(message string) {
	lo.MockInfo(message)
}

// Warnf calls MockWarnf.
func (lo *Logger) Warnf(format string, v ...any) {
	lo.MockWarnf(format, v...)
}

// Warn calls MockWarn.
func (lo *Logger) Warn(message string) {
	lo.MockWarn(message)
}
