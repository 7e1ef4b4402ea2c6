// Package errors provides typed error definitions for the launcher.
// It consolidates error handling into structured error types that can be
// classified by callers and mapped onto HTTP responses by the API layer.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a unique identifier for different error types
type ErrorCode string

const (
	// Configuration errors
	ErrConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrConfigParse      ErrorCode = "CONFIG_PARSE"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Service errors
	ErrServiceNotFound    ErrorCode = "SERVICE_NOT_FOUND"
	ErrServiceStartFailed ErrorCode = "SERVICE_START_FAILED"
	ErrServiceStopFailed  ErrorCode = "SERVICE_STOP_FAILED"
	ErrToolUnavailable    ErrorCode = "TOOL_UNAVAILABLE"
	ErrDependencyCycle    ErrorCode = "DEPENDENCY_CYCLE"

	// Database errors
	ErrDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	ErrDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	ErrDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"

	// Internal errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrTimeout  ErrorCode = "TIMEOUT"
)

// LauncherError represents a structured error with additional context
type LauncherError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Cause      error     `json:"-"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *LauncherError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *LauncherError) Unwrap() error {
	return e.Cause
}

// New creates a new LauncherError
func New(code ErrorCode, message string) *LauncherError {
	return &LauncherError{
		Code:       code,
		Message:    message,
		HTTPStatus: defaultHTTPStatus(code),
	}
}

// NewWithDetails creates a new LauncherError with details
func NewWithDetails(code ErrorCode, message, details string) *LauncherError {
	err := New(code, message)
	err.Details = details
	return err
}

// Wrap creates a new LauncherError wrapping a cause
func Wrap(code ErrorCode, message string, cause error) *LauncherError {
	err := New(code, message)
	err.Cause = cause
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// Code extracts the ErrorCode from an error, or ErrInternal for plain errors.
func Code(err error) ErrorCode {
	if le, ok := err.(*LauncherError); ok {
		return le.Code
	}
	return ErrInternal
}

func defaultHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrServiceNotFound, ErrConfigNotFound:
		return http.StatusNotFound
	case ErrConfigParse, ErrConfigValidation, ErrDependencyCycle:
		return http.StatusBadRequest
	case ErrToolUnavailable:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ServiceNotFound reports an unknown service key.
func ServiceNotFound(key string) *LauncherError {
	return NewWithDetails(ErrServiceNotFound, "Service not found", fmt.Sprintf("Service: %s", key))
}

// ServiceStartFailed reports a failed start attempt.
func ServiceStartFailed(key string, cause error) *LauncherError {
	err := Wrap(ErrServiceStartFailed, "Failed to start service", cause)
	err.Details = fmt.Sprintf("Service: %s, Cause: %v", key, cause)
	return err
}

// ServiceStopFailed reports a failed stop attempt.
func ServiceStopFailed(key string, cause error) *LauncherError {
	err := Wrap(ErrServiceStopFailed, "Failed to stop service", cause)
	err.Details = fmt.Sprintf("Service: %s, Cause: %v", key, cause)
	return err
}

// ToolUnavailable reports a declared required tool that could not be resolved.
func ToolUnavailable(key, tool string) *LauncherError {
	return NewWithDetails(ErrToolUnavailable, "Required tool not available",
		fmt.Sprintf("Service: %s, Tool: %s", key, tool))
}

// ConfigValidationError reports an invalid manifest field.
func ConfigValidationError(field, reason string) *LauncherError {
	return NewWithDetails(ErrConfigValidation, "Configuration validation failed",
		fmt.Sprintf("Field: %s, Reason: %s", field, reason))
}
