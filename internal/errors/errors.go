// Package errors defines the error taxonomy shared by the decode pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeNotFound      ErrorType = "NOT_FOUND"
	ErrTypeFormat        ErrorType = "FORMAT"
	ErrTypeDuplicateName ErrorType = "DUPLICATE_NAME"
	ErrTypeUnknownSignal ErrorType = "UNKNOWN_SIGNAL"
	ErrTypeWrite         ErrorType = "WRITE"
	ErrTypeProcessing    ErrorType = "PROCESSING"
	ErrTypeConfig        ErrorType = "CONFIG"
	ErrTypeValidation    ErrorType = "VALIDATION"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper constructors for the pipeline's failure kinds

// NewNotFoundError reports a missing dictionary or log file.
// It is always propagated unchanged, never recovered.
func NewNotFoundError(path string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", path), nil)
}

// NewFormatError reports malformed dictionary content.
func NewFormatError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFormat, message, cause)
}

// NewDuplicateNameError reports colliding signal or message names.
// Names are reported sorted so the message is deterministic.
func NewDuplicateNameError(what string, names []string) *AppError {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	return NewAppError(ErrTypeDuplicateName,
		fmt.Sprintf("duplicate %s names: %s", what, strings.Join(sorted, ", ")), nil).
		WithContext("names", sorted)
}

// NewUnknownSignalError reports a dtype override referencing a signal
// outside the expected set.
func NewUnknownSignalError(name string) *AppError {
	return NewAppError(ErrTypeUnknownSignal,
		fmt.Sprintf("dtype map contains unknown signal: %s", name), nil)
}

// NewWriteError reports a sink failure during export.
func NewWriteError(message string, cause error) *AppError {
	return NewAppError(ErrTypeWrite, message, cause)
}

// NewProcessingError wraps an unexpected streaming failure at the
// assembler boundary, carrying the original cause.
func NewProcessingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeProcessing, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// isType reports whether err is an AppError of the given type anywhere
// in its chain.
func isType(err error, t ErrorType) bool {
	var appErr *AppError
	for e := err; e != nil; {
		if stderrors.As(e, &appErr) {
			if appErr.Type == t {
				return true
			}
			e = appErr.Cause
			continue
		}
		break
	}
	return false
}

// IsNotFound reports whether err is a missing-file error.
func IsNotFound(err error) bool { return isType(err, ErrTypeNotFound) }

// IsFormat reports whether err is a malformed-dictionary error.
func IsFormat(err error) bool { return isType(err, ErrTypeFormat) }

// IsDuplicateName reports whether err is a name-collision error.
func IsDuplicateName(err error) bool { return isType(err, ErrTypeDuplicateName) }

// IsUnknownSignal reports whether err is an unknown-signal error.
func IsUnknownSignal(err error) bool { return isType(err, ErrTypeUnknownSignal) }

// IsWrite reports whether err is an export sink error.
func IsWrite(err error) bool { return isType(err, ErrTypeWrite) }

// IsProcessing reports whether err is a wrapped streaming failure.
func IsProcessing(err error) bool { return isType(err, ErrTypeProcessing) }
