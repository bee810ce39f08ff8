package errors

import (
	"fmt"
	"strings"
)

// Common error types
var (
	// Configuration errors
	ErrMissingToken      = New("API bearer token is required")
	ErrMissingConnection = New("storage connection is required")
	ErrMissingConfig     = New("configuration is required")
	ErrInvalidConfig     = New("invalid configuration")
	ErrNoAudioURL        = New("no audio URL and no base URL to construct one")

	// Storage errors
	ErrContainerNotFound = New("container does not exist")
	ErrObjectNotFound    = New("object not found")
	ErrCopyFailed        = New("object copy failed")
	ErrUploadFailed      = New("object upload failed")

	// Remote API errors
	ErrRequestFailed   = New("request failed")
	ErrResponseInvalid = New("invalid response")
	ErrNoSession       = New("submission returned no session")

	// Pipeline errors
	ErrPollTimeout = New("polling ceiling reached")
)

// Error represents a standardized error
type Error struct {
	message string
	cause   error
}

// New creates a new error
func New(message string) *Error {
	return &Error{message: message}
}

// Newf creates a new formatted error
func Newf(format string, args ...interface{}) *Error {
	return &Error{message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		message: message,
		cause:   err,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{
		message: fmt.Sprintf(format, args...),
		cause:   err,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// Is checks if the error matches target
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.message == t.message
}

// Helper functions for common patterns

// RequiredField returns an error for missing required fields
func RequiredField(field string) error {
	return Newf("%s is required", field)
}

// InvalidField returns an error for invalid field values
func InvalidField(field string, reason string) error {
	return Newf("%s is invalid: %s", field, reason)
}

// NotFound returns an error for items that were not found
func NotFound(itemType string, identifier string) error {
	return Newf("%s not found: %s", itemType, identifier)
}

// Timeout returns a timeout error
func Timeout(operation string, duration string) error {
	return Newf("%s timeout after %s", operation, duration)
}

// RemoteStatus returns an error for an unexpected HTTP status from the
// transcription service, keeping the remote-supplied body when present.
func RemoteStatus(operation string, status int, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return Newf("%s returned HTTP %d", operation, status)
	}
	return Newf("%s returned HTTP %d: %s", operation, status, body)
}

// IsConfigurationError checks if an error stems from missing or invalid
// injected configuration rather than a remote failure.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "no base URL")
}
