package logger

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ObservabilityLogger provides structured JSONL logging using logrus,
// suitable for Loki or any log shipper that eats JSON lines.
type ObservabilityLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// Component constants for consistent labeling
const (
	ComponentBridge    = "bridge_core"
	ComponentTokenizer = "tokenizer"
	ComponentSession   = "stream_session"
	ComponentConverter = "call_converter"
	ComponentProxy     = "proxy"
	ComponentConfig    = "configuration"
)

// Category constants for log classification
const (
	CategoryRequest        = "request"
	CategoryTransformation = "transformation"
	CategorySuppressed     = "suppressed"
	CategoryWarning        = "warning"
	CategoryError          = "error"
	CategoryFlush          = "flush"
	CategoryFault          = "fault"
)

// NewObservabilityLogger creates a structured JSONL logger writing to
// logDir/harmony-bridge.jsonl.
func NewObservabilityLogger(logDir string) (*ObservabilityLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, "harmony-bridge.jsonl")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(file)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	l.SetLevel(logrus.InfoLevel)

	return &ObservabilityLogger{logger: l, file: file}, nil
}

// SetDebug lowers the minimum level to debug.
func (o *ObservabilityLogger) SetDebug() {
	o.logger.SetLevel(logrus.DebugLevel)
}

// Close closes the log file
func (o *ObservabilityLogger) Close() error {
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

func (o *ObservabilityLogger) entry(component, category, requestID string, fields map[string]interface{}) *logrus.Entry {
	entry := o.logger.WithFields(logrus.Fields{
		"service":   "harmony-bridge",
		"component": component,
		"category":  category,
	})
	if requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	return entry
}

// Debug logs a debug event with standard labels
func (o *ObservabilityLogger) Debug(component, category, requestID, msg string, fields map[string]interface{}) {
	o.entry(component, category, requestID, fields).Debug(msg)
}

// Info logs an info event with standard labels
func (o *ObservabilityLogger) Info(component, category, requestID, msg string, fields map[string]interface{}) {
	o.entry(component, category, requestID, fields).Info(msg)
}

// Warn logs a warning event with standard labels
func (o *ObservabilityLogger) Warn(component, category, requestID, msg string, fields map[string]interface{}) {
	o.entry(component, category, requestID, fields).Warn(msg)
}

// Error logs an error event with standard labels
func (o *ObservabilityLogger) Error(component, category, requestID, msg string, fields map[string]interface{}) {
	o.entry(component, category, requestID, fields).Error(msg)
}
