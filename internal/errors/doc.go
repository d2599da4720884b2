// Package errors provides error handling conventions for the marketsync CLI.
//
// This package defines the sentinel errors that make up the reconciliation
// error taxonomy, an ExitError type for CLI exit code handling, and the exit
// code constants that calling automation (CI) relies on.
//
// # Sentinel Errors
//
// Sentinel errors let callers classify failures with [errors.Is]. Lower
// layers attach them with cockroachdb's errors.Mark so the original message
// survives:
//
//	if errors.Is(err, mserrors.ErrWriteConflict) {
//	    // settings.json changed under us
//	}
//
// # Exit Codes
//
//   - ExitSuccess (0): in sync, or fix left nothing unresolved
//   - ExitDrift (1): drift detected, or fix left something unresolved
//   - ExitFatal (2): inputs could not be read or written
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and optional
// suggestion. An ExitError with a nil Err is silent: the report has already
// told the user everything, only the exit code remains.
//
//	err := mserrors.NewFatalError(err, "Check --settings")
//	var exitErr *mserrors.ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
package errors
