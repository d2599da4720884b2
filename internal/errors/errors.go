package errors

import (
	"errors"
	"fmt"
)

// Exit codes for the marketsync CLI.
const (
	// ExitSuccess indicates everything is in sync.
	ExitSuccess = 0

	// ExitDrift indicates drift was found, or fix left something unresolved.
	ExitDrift = 1

	// ExitFatal indicates an input could not be read or written.
	ExitFatal = 2
)

// Sentinel errors for the reconciliation error taxonomy.
var (
	// ErrFatalInput indicates the plugin root or settings file cannot be read
	// or is malformed.
	ErrFatalInput = errors.New("fatal input error")

	// ErrScanConflict indicates two filesystem entries normalize to the same
	// (plugin, kind, name) triple.
	ErrScanConflict = errors.New("scan conflict")

	// ErrRegistryAnomaly indicates a registry entry looks like a recognized
	// key but is malformed.
	ErrRegistryAnomaly = errors.New("registry anomaly")

	// ErrRemoteUnavailable indicates the remote registry could not be reached,
	// timed out, or rejected the credentials.
	ErrRemoteUnavailable = errors.New("remote registry unavailable")

	// ErrWriteConflict indicates the settings file changed between read and write.
	ErrWriteConflict = errors.New("write conflict")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ExitError wraps an error with an exit code and optional suggestion for CLI applications.
// It implements the error interface and supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit. A nil Err means the
	// failure was already reported and nothing more should be printed.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and exit code.
// If err is nil, the returned ExitError will have a nil Err field.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{
		Err:  err,
		Code: code,
	}
}

// NewDriftError creates an ExitError with ExitDrift code and a suggestion.
func NewDriftError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitDrift,
		Suggestion: suggestion,
	}
}

// NewFatalError creates an ExitError with ExitFatal code and a suggestion.
func NewFatalError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitFatal,
		Suggestion: suggestion,
	}
}

// NewUserError creates an ExitError for invalid flags or arguments.
// Usage mistakes are fatal: they never describe the state of the registries.
func NewUserError(err error, suggestion string) *ExitError {
	return NewFatalError(err, suggestion)
}

// NewConfigError creates an ExitError with ExitFatal code and a standard suggestion.
func NewConfigError(err error) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitFatal,
		Suggestion: "Run: marketsync config list",
	}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Silent reports whether the error carries nothing left to print.
func (e *ExitError) Silent() bool {
	return e.Err == nil
}

// Code returns the exit code for err. Nil maps to ExitSuccess, an
// ExitError anywhere in the chain supplies its own code, and anything else
// is treated as fatal.
func Code(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFatal
}
