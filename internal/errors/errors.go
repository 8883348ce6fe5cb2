// Package errors defines the structured error types used across livemd.
//
// Errors carry a category, a stable code, and optional component and path
// context so the pipeline can decide between retrying a path, answering a
// request with a client error, or tearing the process down.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Stable error codes used by callers to branch on failure modes.
const (
	CodeInvalidPath       = "invalid_path"
	CodeRenderIO          = "render_io"
	CodeWatchSubscription = "watch_subscription"
	CodeConfigInvalid     = "config_invalid"
)

// LivemdError is a structured error type with context.
type LivemdError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Component   string
	Path        string
	Recoverable bool
}

// Error implements the error interface.
func (e *LivemdError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *LivemdError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by type and code.
func (e *LivemdError) Is(target error) bool {
	var t *LivemdError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithComponent adds component context.
func (e *LivemdError) WithComponent(component string) *LivemdError {
	e.Component = component

	return e
}

// WithCause attaches the underlying error.
func (e *LivemdError) WithCause(cause error) *LivemdError {
	e.Cause = cause

	return e
}

// NewInvalidPath creates a validation error for a path that escapes the
// content root or is otherwise unservable. Request-scoped and recoverable.
func NewInvalidPath(path, message string) *LivemdError {
	return &LivemdError{
		Type:        ErrorTypeValidation,
		Code:        CodeInvalidPath,
		Message:     message,
		Path:        path,
		Recoverable: true,
	}
}

// NewRenderIO creates an I/O error for a source that could not be read
// mid-render. The path stays eligible for retry on its next change event.
func NewRenderIO(path string, cause error) *LivemdError {
	return &LivemdError{
		Type:        ErrorTypeIO,
		Code:        CodeRenderIO,
		Message:     "reading source failed",
		Cause:       cause,
		Path:        path,
		Recoverable: true,
	}
}

// NewWatchSubscription creates the fatal error raised when the filesystem
// notification mechanism itself fails. Never retried: stale output with no
// further updates is worse than a visible crash.
func NewWatchSubscription(cause error) *LivemdError {
	return &LivemdError{
		Type:        ErrorTypeInternal,
		Code:        CodeWatchSubscription,
		Message:     "filesystem watch failed",
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration validation error.
func NewConfigError(message string, cause error) *LivemdError {
	return &LivemdError{
		Type:        ErrorTypeConfig,
		Code:        CodeConfigInvalid,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsInvalidPath reports whether err is an invalid path error.
func IsInvalidPath(err error) bool {
	var e *LivemdError
	return errors.As(err, &e) && e.Code == CodeInvalidPath
}

// IsRenderIO reports whether err is a source read failure.
func IsRenderIO(err error) bool {
	var e *LivemdError
	return errors.As(err, &e) && e.Code == CodeRenderIO
}

// IsWatchSubscription reports whether err is a fatal watch failure.
func IsWatchSubscription(err error) bool {
	var e *LivemdError
	return errors.As(err, &e) && e.Code == CodeWatchSubscription
}

// IsRecoverable reports whether the pipeline may continue after err.
// Unknown error types are treated as recoverable.
func IsRecoverable(err error) bool {
	var e *LivemdError
	if errors.As(err, &e) {
		return e.Recoverable
	}

	return true
}
