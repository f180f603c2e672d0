// Package util provides logging and traffic statistics helpers.
package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm prefixed printers.
// All output goes to stderr by default (pterm's default).

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// Logger is a named structured logger. Every entry carries a "logger" field
// with the name, followed by the key/value pairs given at the call site.
// Instances are created per component (one per task, one per transport), so
// no logging state is shared beyond pterm's default sink.
type Logger struct {
	name string
	base *pterm.Logger
}

// NewLogger returns a logger writing to pterm's default logger.
func NewLogger(name string) *Logger {
	return &Logger{name: name, base: &pterm.DefaultLogger}
}

// Name returns the logger name.
func (l *Logger) Name() string { return l.name }

func (l *Logger) args(kv []any) []pterm.LoggerArgument {
	return l.base.Args(append([]any{"logger", l.name}, kv...)...)
}

func (l *Logger) Debug(msg string, kv ...any) { l.base.Debug(msg, l.args(kv)) }
func (l *Logger) Info(msg string, kv ...any)  { l.base.Info(msg, l.args(kv)) }
func (l *Logger) Warn(msg string, kv ...any)  { l.base.Warn(msg, l.args(kv)) }
func (l *Logger) Error(msg string, kv ...any) { l.base.Error(msg, l.args(kv)) }
