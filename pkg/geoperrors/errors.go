// Package geoperrors provides structured error handling for the ingestion
// pipeline. Errors carry a category, an optional cause, and key-value
// details, so callers can decide between retrying (transient connection
// problems) and aborting the run (everything else).
package geoperrors

import (
	"errors"
	"fmt"
)

// ErrorType categorizes an error for handling strategy and logging.
type ErrorType string

const (
	// ErrorTypeConfig represents configuration errors.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents database connection errors.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout represents timeout errors.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeQuery represents statement or COPY execution errors.
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeData represents malformed or unusable source data.
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents missing or unreadable source files.
	ErrorTypeFile ErrorType = "file"
)

// Error is a categorized error with an optional cause and context details.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error with the given type and message.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a type and message, preserving the
// original as the cause. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: message, Cause: err}
}

// IsRetryable reports whether the error is worth retrying. Only connection
// and timeout errors qualify; data, file, query, and config errors are
// terminal for a run.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeConnection, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// IsType reports whether the error carries the given category.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}
