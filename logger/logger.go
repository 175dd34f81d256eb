package logger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"harmony-bridge/internal"
)

// Level represents the severity level of a log message
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns the emoji prefix for a log level
func (l Level) Emoji() string {
	switch l {
	case DEBUG:
		return "🔍"
	case INFO:
		return "ℹ️"
	case WARN:
		return "⚠️"
	case ERROR:
		return "❌"
	default:
		return "📝"
	}
}

// ParseLevel converts a string to a Level with fallback to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger defines the interface for structured logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	WithField(key, value string) Logger
	WithComponent(component string) Logger
}

// LoggerConfig holds configuration for the logger
type LoggerConfig interface {
	GetMinLogLevel() Level
}

// StaticConfig is a LoggerConfig with a fixed minimum level
type StaticConfig struct {
	MinLevel Level
}

// GetMinLogLevel returns the configured minimum level
func (s StaticConfig) GetMinLogLevel() Level { return s.MinLevel }

// ContextLogger implements the Logger interface with request-id awareness
type ContextLogger struct {
	ctx       context.Context
	config    LoggerConfig
	fields    map[string]string
	component string
}

// New creates a new ContextLogger with the given config
func New(ctx context.Context, config LoggerConfig) Logger {
	return &ContextLogger{
		ctx:    ctx,
		config: config,
		fields: make(map[string]string),
	}
}

// NewNop returns a logger that discards everything, for tests and optional
// collaborators.
func NewNop() Logger {
	return nopLogger{}
}

// WithField adds a field to the logger context
func (l *ContextLogger) WithField(key, value string) Logger {
	newFields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value

	return &ContextLogger{
		ctx:       l.ctx,
		config:    l.config,
		fields:    newFields,
		component: l.component,
	}
}

// WithComponent sets the component for the logger
func (l *ContextLogger) WithComponent(component string) Logger {
	return &ContextLogger{
		ctx:       l.ctx,
		config:    l.config,
		fields:    l.fields,
		component: component,
	}
}

// formatMessage creates a structured log message
func (l *ContextLogger) formatMessage(level Level, format string, args ...interface{}) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%s [%s]", level.Emoji(), level.String()))

	if requestID := internal.GetRequestID(l.ctx); requestID != "unknown" {
		parts = append(parts, fmt.Sprintf("[%s]", requestID))
	}

	if l.component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", l.component))
	}

	parts = append(parts, fmt.Sprintf(format, args...))

	if len(l.fields) > 0 {
		var fieldParts []string
		for k, v := range l.fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%s", k, v))
		}
		parts = append(parts, fmt.Sprintf("fields={%s}", strings.Join(fieldParts, ", ")))
	}

	return strings.Join(parts, " ")
}

func (l *ContextLogger) logAt(level Level, format string, args ...interface{}) {
	if level < l.config.GetMinLogLevel() {
		return
	}
	log.Println(l.formatMessage(level, format, args...))
}

// Debug logs a debug level message
func (l *ContextLogger) Debug(format string, args ...interface{}) {
	l.logAt(DEBUG, format, args...)
}

// Info logs an info level message
func (l *ContextLogger) Info(format string, args ...interface{}) {
	l.logAt(INFO, format, args...)
}

// Warn logs a warning level message
func (l *ContextLogger) Warn(format string, args ...interface{}) {
	l.logAt(WARN, format, args...)
}

// Error logs an error level message
func (l *ContextLogger) Error(format string, args ...interface{}) {
	l.logAt(ERROR, format, args...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})      {}
func (nopLogger) Info(string, ...interface{})       {}
func (nopLogger) Warn(string, ...interface{})       {}
func (nopLogger) Error(string, ...interface{})      {}
func (n nopLogger) WithField(string, string) Logger { return n }
func (n nopLogger) WithComponent(string) Logger     { return n }
