// Package errors provides structured error types for the collage pipeline.
//
// Every failure that reaches a user carries a machine-readable [Code] so the
// CLI and the HTTP surface can render it consistently:
//
//   - INVALID_*: input validation failures (files, indices, layouts, formats)
//   - DECODE_FAILURE: a source image could not be decoded or re-encoded
//   - COMPOSITE_FAILURE, NO_CONTENT: export aborted before delivery
//   - DELIVERY_FAILURE: no delivery path accepted the artifact
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "%s is not an image", name)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // report inline, nothing changed
//	}
//
//	err := errors.Wrap(errors.ErrCodeCompositeFailure, cause, "slot %d", i)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidIndex  Code = "INVALID_INDEX"
	ErrCodeInvalidLayout Code = "INVALID_LAYOUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Pipeline errors
	ErrCodeDecodeFailure    Code = "DECODE_FAILURE"
	ErrCodeCompositeFailure Code = "COMPOSITE_FAILURE"
	ErrCodeNoContent        Code = "NO_CONTENT"
	ErrCodeDeliveryFailure  Code = "DELIVERY_FAILURE"
	ErrCodeUserCancelled    Code = "USER_CANCELLED"
	ErrCodeExportInProgress Code = "EXPORT_IN_PROGRESS"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// Only the outermost *Error in the chain is considered.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// GuidedError is a decode failure that carries actionable advice for the
// user, such as converting the file on the source device.
type GuidedError struct {
	Name     string // file the advice refers to
	Guidance string
	Cause    error
}

// Error implements the error interface.
func (e *GuidedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Name, e.Cause)
	}
	return e.Name + ": unsupported format"
}

// Unwrap returns the underlying cause.
func (e *GuidedError) Unwrap() error { return e.Cause }

// Code returns the error code for this error type.
func (e *GuidedError) Code() Code {
	return ErrCodeDecodeFailure
}

// Guidance returns the advice attached to err, or "" if there is none.
func Guidance(err error) string {
	var g *GuidedError
	if errors.As(err, &g) {
		return g.Guidance
	}
	return ""
}
