package log

import (
	"github.com/kataras/golog"
)

// GologLogger is the Logger the socrates command writes through. The agent
// and the ingestion pipeline share one golog output, each under its own
// prefix (see Named).
type GologLogger struct {
	logger *golog.Logger
	level  LogLevel
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger at info level.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	l := &GologLogger{logger: logger}
	l.SetLevel(LogLevelInfo)
	return l
}

// Named returns a logger whose lines carry component as a prefix, for
// example "ingest: procesados 10/40 documentos". Children share the parent output
// and start at the parent level.
func (l *GologLogger) Named(component string) *GologLogger {
	child := &GologLogger{logger: l.logger.Child(component)}
	child.SetLevel(l.level)
	return child
}

// Debug carries per-node transitions and raw model output.
func (l *GologLogger) Debug(format string, v ...any) {
	if l.level <= LogLevelDebug {
		l.logger.Debugf(format, v...)
	}
}

// Info carries tool calls and ingestion progress.
func (l *GologLogger) Info(format string, v ...any) {
	if l.level <= LogLevelInfo {
		l.logger.Infof(format, v...)
	}
}

// Warn carries steps the agent skipped, such as a malformed action.
func (l *GologLogger) Warn(format string, v ...any) {
	if l.level <= LogLevelWarn {
		l.logger.Warnf(format, v...)
	}
}

// Error carries failed nodes, tool calls and documents.
func (l *GologLogger) Error(format string, v ...any) {
	if l.level <= LogLevelError {
		l.logger.Errorf(format, v...)
	}
}

// SetLevel maps level onto golog so filtered lines are never formatted.
func (l *GologLogger) SetLevel(level LogLevel) {
	l.level = level

	gologLevel := "info"
	switch level {
	case LogLevelDebug:
		gologLevel = "debug"
	case LogLevelWarn:
		gologLevel = "warn"
	case LogLevelError:
		gologLevel = "error"
	case LogLevelNone:
		gologLevel = "disable"
	}

	l.logger.SetLevel(gologLevel)
}

func (l *GologLogger) GetLevel() LogLevel {
	return l.level
}
