package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Action errors
	ErrActionInvalid    ErrorCode = "ACTION_INVALID"
	ErrActionNotFound   ErrorCode = "ACTION_NOT_FOUND"
	ErrActionFinalized  ErrorCode = "ACTION_FINALIZED"
	ErrActionTransition ErrorCode = "ACTION_TRANSITION"

	// Terminal errors
	ErrTerminalNotReady ErrorCode = "TERMINAL_NOT_READY"
	ErrTerminalExecute  ErrorCode = "TERMINAL_EXECUTE"

	// Filesystem errors
	ErrFileWrite  ErrorCode = "FILE_WRITE"
	ErrDirCreate  ErrorCode = "DIR_CREATE"
	ErrPathEscape ErrorCode = "PATH_ESCAPE"

	// Build errors
	ErrBuildSpawn ErrorCode = "BUILD_SPAWN"
	ErrBuildExit  ErrorCode = "BUILD_EXIT"

	// Migration errors
	ErrMigrationOp   ErrorCode = "MIGRATION_OP"
	ErrMigrationPath ErrorCode = "MIGRATION_PATH"

	// Journal errors
	ErrJournalOpen  ErrorCode = "JOURNAL_OPEN"
	ErrJournalWrite ErrorCode = "JOURNAL_WRITE"

	// Scheduler errors
	ErrSchedulerClosed ErrorCode = "SCHEDULER_CLOSED"
)

// RunletError represents a structured error with code and details
type RunletError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *RunletError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *RunletError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *RunletError) Is(target error) bool {
	var targetErr *RunletError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new RunletError with the given code and message
func New(code ErrorCode, message string) *RunletError {
	return &RunletError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new RunletError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RunletError {
	return &RunletError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a RunletError
func Wrap(err error, code ErrorCode, message string) *RunletError {
	if err == nil {
		return nil
	}
	return &RunletError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *RunletError {
	if err == nil {
		return nil
	}
	return &RunletError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *RunletError) WithDetail(key string, value interface{}) *RunletError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var runletErr *RunletError
	if errors.As(err, &runletErr) {
		return runletErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a RunletError
func GetErrorCode(err error) ErrorCode {
	var runletErr *RunletError
	if errors.As(err, &runletErr) {
		return runletErr.Code
	}
	return ErrUnknown
}
