// Package logger is the relay's logging facade over logrus.
//
// Components derive their logger once with WithField("component", ...)
// (hub, fanout, router, stream, http) and add "connection_id" or "route"
// per event. Static fields (hostname, pid, node_id) come from
// GetDefaultFields.
package logger

import (
	"context"
	"io"
)

// Level is the minimum severity a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Fields are structured key/value pairs attached to every entry.
type Fields map[string]any

// Logger is implemented by the logrus backed logger and by NewNop.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Fatal(msg string)
	Fatalf(format string, args ...any)

	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger
	WithContext(ctx context.Context) Logger

	SetLevel(level Level)
	SetOutput(output io.Writer)
}
