// Package errors defines the structured error type used for kbdebug's own
// operational failures (configuration, role maintenance, transport).
//
// Notices captured from the host application are data, not errors, and live
// in the notice package instead.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// DebugError is a structured error type with context.
type DebugError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
}

// Error implements the error interface.
func (e *DebugError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *DebugError) Unwrap() error {
	return e.Cause
}

// Is matches another DebugError with the same type and code.
func (e *DebugError) Is(target error) bool {
	var t *DebugError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *DebugError) WithContext(key string, value interface{}) *DebugError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *DebugError) WithComponent(component string) *DebugError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *DebugError {
	return &DebugError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *DebugError {
	return &DebugError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *DebugError {
	return &DebugError{
		Type:    ErrorTypeNetwork,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *DebugError {
	return &DebugError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *DebugError {
	return &DebugError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err is a DebugError of the given type.
func IsType(err error, t ErrorType) bool {
	var de *DebugError
	if errors.As(err, &de) {
		return de.Type == t
	}

	return false
}

// Logger is the subset of logging.Logger the handler needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Report logs err with its structured fields. Validation and config errors
// are logged as warnings, everything else as errors.
func Report(ctx context.Context, logger Logger, err error) {
	if err == nil || logger == nil {
		return
	}

	var de *DebugError
	if !errors.As(err, &de) {
		logger.Error(ctx, err, "Unexpected error")
		return
	}

	fields := []interface{}{"type", string(de.Type), "code", de.Code}
	if de.Component != "" {
		fields = append(fields, "component", de.Component)
	}
	for k, v := range de.Context {
		fields = append(fields, k, v)
	}

	switch de.Type {
	case ErrorTypeValidation, ErrorTypeConfig:
		logger.Warn(ctx, err, de.Message, fields...)
	default:
		logger.Error(ctx, err, de.Message, fields...)
	}
}
