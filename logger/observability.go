// Package logger provides structured JSON logging for the lookup gateway
// using logrus, suitable for ingestion by a log aggregator.
package logger

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Component constants for consistent labeling
const (
	ComponentGateway        = "gateway"
	ComponentCollector      = "collector"
	ComponentCircuitBreaker = "circuit_breaker"
	ComponentParser         = "parser"
	ComponentExtractor      = "extractor"
	ComponentCache          = "cache"
	ComponentTransport      = "transport"
	ComponentConfig         = "configuration"
)

// Category constants for log classification
const (
	CategoryRequest    = "request"
	CategoryCollection = "collection"
	CategoryFailover   = "failover"
	CategoryHealth     = "health"
	CategoryParse      = "parse"
	CategoryCache      = "cache"
	CategoryValidation = "validation"
	CategorySuccess    = "success"
	CategoryError      = "error"
)

// ObservabilityLogger writes structured JSON log lines with component and
// category labels on every entry.
type ObservabilityLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// NewObservabilityLogger creates a structured logger writing JSONL to logDir
func NewObservabilityLogger(logDir string) (*ObservabilityLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, "lookup-gateway.jsonl")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(file)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetLevel(logrus.InfoLevel)

	logger = logger.WithField("service", "lookup-gateway").Logger

	return &ObservabilityLogger{
		logger: logger,
		file:   file,
	}, nil
}

// Close closes the log file
func (o *ObservabilityLogger) Close() error {
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

// createEntry creates a logrus entry with standard fields
func (o *ObservabilityLogger) createEntry(component, category, requestID string, fields map[string]interface{}) *logrus.Entry {
	entry := o.logger.WithFields(logrus.Fields{
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

// Debug logs a debug message
func (o *ObservabilityLogger) Debug(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Debug(message)
}

// Info logs an info message
func (o *ObservabilityLogger) Info(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Info(message)
}

// Warn logs a warning message
func (o *ObservabilityLogger) Warn(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Warn(message)
}

// Error logs an error message
func (o *ObservabilityLogger) Error(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Error(message)
}

// Request logs gateway request events
func (o *ObservabilityLogger) Request(requestID, message string, fields map[string]interface{}) {
	o.Info(ComponentGateway, CategoryRequest, requestID, message, fields)
}

// FailoverEvent logs a switch from the primary to the backup channel
func (o *ObservabilityLogger) FailoverEvent(requestID, channel, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["channel"] = channel
	o.Warn(ComponentCollector, CategoryFailover, requestID, message, fields)
}

// CircuitBreakerEvent logs failure-tracker state changes
func (o *ObservabilityLogger) CircuitBreakerEvent(requestID, channel, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["channel"] = channel
	o.Info(ComponentCircuitBreaker, CategoryHealth, requestID, message, fields)
}

// CacheEvent logs cache lookups and stores
func (o *ObservabilityLogger) CacheEvent(requestID, message string, fields map[string]interface{}) {
	o.Info(ComponentCache, CategoryCache, requestID, message, fields)
}
