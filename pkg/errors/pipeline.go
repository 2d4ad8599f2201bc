package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ConfigurationError reports a missing, malformed or incomplete YAML document.
type ConfigurationError struct {
	Path   string // file the problem was found in
	Field  string // dotted key path, empty when the whole document is at fault
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("elecbill: configuration error in %s", e.Path)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field '%s')", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("field", e.Field).
		Str("reason", e.Reason).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(path, field, reason string, err error) error {
	return errors.WithStack(&ConfigurationError{Path: path, Field: field, Reason: reason, Err: err})
}

// DataFormatError reports input data that does not have the expected shape:
// a missing target column, an empty file, an unparseable numeric cell.
type DataFormatError struct {
	Op     string
	Column string
	Reason string
}

func (e *DataFormatError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("elecbill: %s: column '%s': %s", e.Op, e.Column, e.Reason)
	}
	return fmt.Sprintf("elecbill: %s: %s", e.Op, e.Reason)
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *DataFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "DataFormatError")
}

// NewDataFormatError creates a DataFormatError with a stack trace.
func NewDataFormatError(op, column, reason string) error {
	return errors.WithStack(&DataFormatError{Op: op, Column: column, Reason: reason})
}

// PersistenceError reports a path that could not be read or written.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("elecbill: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *PersistenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("type", "PersistenceError")
}

// NewPersistenceError creates a PersistenceError with a stack trace.
func NewPersistenceError(op, path string, err error) error {
	return errors.WithStack(&PersistenceError{Op: op, Path: path, Err: err})
}

// ValidationGateError is returned when the upstream schema validation did not
// pass, so the transformation stage refuses to run.
type ValidationGateError struct {
	StatusFile string
	Status     string // raw status token, empty when the file was absent
	Err        error
}

func (e *ValidationGateError) Error() string {
	switch {
	case e.StatusFile == "":
		return "elecbill: data schema is not valid: no validation status file configured"
	case e.Err != nil:
		return fmt.Sprintf("elecbill: data schema is not valid: cannot read validation status %s: %v", e.StatusFile, e.Err)
	case e.Status == "":
		return fmt.Sprintf("elecbill: data schema is not valid: validation status %s is empty", e.StatusFile)
	default:
		return fmt.Sprintf("elecbill: data schema is not valid: validation status in %s is %q", e.StatusFile, e.Status)
	}
}

func (e *ValidationGateError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *ValidationGateError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("status_file", e.StatusFile).
		Str("status", e.Status).
		Str("type", "ValidationGateError")
}

// NewValidationGateError creates a ValidationGateError with a stack trace.
func NewValidationGateError(statusFile, status string, err error) error {
	return errors.WithStack(&ValidationGateError{StatusFile: statusFile, Status: status, Err: err})
}
