// Package log provides the structured logging interface used by every stage
// of the ElectricityBill preprocessing pipeline.
//
// The interface is slog-compatible so backends can be swapped; the default
// backend is zerolog (see NewZerologProvider). Stage code should attach the
// standard keys from attributes.go instead of inventing ad-hoc field names:
//
//	logger := log.GetLoggerWithName("data_transformation").With(
//	    log.StageKey, "Data Transformation Stage",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("split persisted",
//	    log.SplitKey, "train",
//	    log.SamplesKey, 75,
//	    log.FeaturesKey, 4,
//	)
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are passed as alternating key/value pairs. An error value is logged
// with its message, and the zerolog backend also attaches the stack trace
// recorded by cockroachdb/errors.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	//
	//	logger.Error("fit-transform failed",
	//	    log.ErrAttrKey, err,
	//	    log.OperationKey, log.OperationFitTransform,
	//	)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ToLogLevel parses a level name as accepted by the --log-level flag.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log-level", "must be one of debug, info, warn, error", level)
	}
}

// LoggerProvider creates loggers that share one output and level.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
