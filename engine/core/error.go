package core

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a structured execution error.
type ErrorCode string

const (
	// CodeValidation covers missing or invalid request fields and
	// unresolvable workflow variables.
	CodeValidation ErrorCode = "ValidationError"
	// CodeConfiguration is returned when a required backend is disabled for
	// the requested language.
	CodeConfiguration ErrorCode = "ConfigurationError"
	// CodeCompile covers syntax errors in user code, including ones only
	// surfaced after wrapper closure.
	CodeCompile ErrorCode = "CompileError"
	// CodeRuntime covers exceptions raised while user code executes.
	CodeRuntime ErrorCode = "RuntimeError"
	// CodeTimeout is surfaced when execution exceeds its wall-clock budget.
	CodeTimeout ErrorCode = "ExecutionTimeout"
	// CodeBackendUnavailable covers remote sandbox transport failures.
	CodeBackendUnavailable ErrorCode = "BackendUnavailable"
)

// Error is the structured error type shared across the execution pipeline.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	err     error
}

func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to an underlying error while keeping it
// reachable through errors.Unwrap.
func WrapError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, err: err}
}

func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// CodeOf extracts the ErrorCode from err, defaulting to CodeRuntime so that
// unexpected internal failures always degrade to a structured runtime error.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeRuntime
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
