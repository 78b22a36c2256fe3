// Package errors provides structured error types for sqltree.
//
// Every rejection the schema editor, the serializer, the HTTP API and the CLI
// can produce carries a machine-readable [Code] so callers can branch on the
// kind of failure and the API can map it to an HTTP status:
//   - INVALID_*: malformed input (names, JSON, connections)
//   - LIMIT_EXCEEDED, LAST_COLUMN, FIELD_LOCKED: editor guards
//   - FK_TARGET_NOT_PRIMARY_KEY: a foreign key pointing at a non-key column
//   - SCHEMA_REJECTED: the conversion service refused the schema
//   - NOT_FOUND, NETWORK_ERROR, INTERNAL_ERROR: the usual suspects
//
// # Usage
//
//	err := errors.New(errors.ErrCodeLimitExceeded, "at most %d tables", 15)
//	if errors.Is(err, errors.ErrCodeLimitExceeded) {
//	    // show the message to the user
//	}
//
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "POST %s", url)
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
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidJSON       Code = "INVALID_JSON"
	ErrCodeInvalidName       Code = "INVALID_NAME"
	ErrCodeInvalidFormat     Code = "INVALID_FORMAT"
	ErrCodeInvalidConnection Code = "INVALID_CONNECTION"

	// Editor guards
	ErrCodeLimitExceeded         Code = "LIMIT_EXCEEDED"
	ErrCodeLastColumn            Code = "LAST_COLUMN"
	ErrCodeFieldLocked           Code = "FIELD_LOCKED"
	ErrCodeFKTargetNotPrimaryKey Code = "FK_TARGET_NOT_PRIMARY_KEY"

	// Conversion service
	ErrCodeSchemaRejected Code = "SCHEMA_REJECTED"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

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
// It unwraps the error chain looking for an *Error with a matching code.
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

// Join combines several validation errors into one. It returns nil when errs
// holds no non-nil error and the single error unchanged when there is one.
// The combined error reports the code of the first error.
func Join(errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	code := GetCode(kept[0])
	if code == "" {
		code = ErrCodeInvalidInput
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf("%d problems found", len(kept)),
		Cause:   errors.Join(kept...),
	}
}

// Messages flattens err into the list of user messages it carries. Errors
// produced by [Join] yield one message per joined error.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Cause != nil {
		if multi, ok := e.Cause.(interface{ Unwrap() []error }); ok {
			var out []string
			for _, inner := range multi.Unwrap() {
				out = append(out, Messages(inner)...)
			}
			return out
		}
	}
	return []string{UserMessage(err)}
}
