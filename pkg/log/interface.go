// Package log provides structured logging for the wine quality trainer and service.
//
// Loggers are backed by zerolog. Call sites pass a message followed by
// alternating key/value fields using the keys declared in attributes.go:
//
//	logger := log.GetLoggerWithName("pipeline")
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1599,
//	    log.FeaturesKey, 11,
//	)
//
// An error value may appear anywhere a key is expected. It is written under
// "error" together with its stack trace under StacktraceKey.
package log

import (
	"context"
)

// Logger is the logging surface used across the trainer and the service.
// Fields alternate key and value; a bare error is logged under "error".
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	// Error logs at error level. An error field carries its stack trace:
	//
	//	logger.Error("Training failed", err, log.OperationKey, log.OperationFit)
	Error(msg string, fields ...any)

	// With returns a child logger that always carries fields.
	With(fields ...any) Logger
	Enabled(ctx context.Context, level Level) bool
}

// Level is a log severity. The numeric values line up with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// LoggerProvider hands out loggers for the package-level helpers. Tests
// install their own with SetProvider.
type LoggerProvider interface {
	GetLogger() Logger
	// GetLoggerWithName tags the logger with ComponentKey.
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
