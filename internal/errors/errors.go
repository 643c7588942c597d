// Package errors defines the stable error code system for ctrain.
package errors

import (
	"errors"
	"fmt"
	"io"
)

// Code is a stable error code string.
type Code string

// Error codes. Stable public contract: scripts match on these.
const (
	EUsage    Code = "E_USAGE"
	EInternal Code = "E_INTERNAL"

	// Configuration errors (rejected before any round runs)
	EInvalidConfig Code = "E_INVALID_CONFIG"

	// Transient round errors (counted against the per-round attempt budget)
	ETrainFailed   Code = "E_TRAIN_FAILED"   // trainer reported an error
	EEvalFailed    Code = "E_EVAL_FAILED"    // evaluator reported an error
	ERoundTimeout  Code = "E_ROUND_TIMEOUT"  // attempt exceeded round.timeout
	EMetricMissing Code = "E_METRIC_MISSING" // evaluator omitted the target metric or returned it out of range
	EScriptFailed  Code = "E_SCRIPT_FAILED"  // collaborator script exited non-zero

	// Terminal round errors
	ECancelled    Code = "E_CANCELLED"     // external cancellation mid-round
	ERoundAborted Code = "E_ROUND_ABORTED" // round failed on every attempt

	// Archive errors (fatal to the session)
	EArchiveFailed   Code = "E_ARCHIVE_FAILED"   // storage unavailable or write failed
	EArchiveConflict Code = "E_ARCHIVE_CONFLICT" // key exists with a different record
	EAlreadyArchived Code = "E_ALREADY_ARCHIVED" // key exists with an identical record

	// Session lookup errors
	ESessionNotFound    Code = "E_SESSION_NOT_FOUND"
	ESessionIDAmbiguous Code = "E_SESSION_ID_AMBIGUOUS" // id prefix matches >1 session
	EStoreCorrupt       Code = "E_STORE_CORRUPT"        // archived history unreadable or has gaps
)

// CtrainError is the standard error type for ctrain errors.
type CtrainError struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string // optional structured context
}

// Error returns the stable error format: "CODE: message".
func (e *CtrainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CtrainError) Unwrap() error {
	return e.Cause
}

// ExitCodeError wraps an error with an explicit process exit code.
type ExitCodeError struct {
	Err  error
	Code int
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

func (e *ExitCodeError) ExitCode() int {
	return e.Code
}

// WithExitCode wraps err with a specific process exit code.
func WithExitCode(err error, code int) error {
	return &ExitCodeError{Err: err, Code: code}
}

// Silent returns an error that only carries an exit code. Callers print
// nothing for it.
func Silent(code int) error {
	return &ExitCodeError{Code: code}
}

// IsSilent reports whether err is an exit code with no message.
func IsSilent(err error) bool {
	var ec *ExitCodeError
	return errors.As(err, &ec) && ec.Err == nil
}

// New creates a new CtrainError with the given code and message.
func New(code Code, msg string) error {
	return &CtrainError{Code: code, Msg: msg}
}

// NewWithDetails creates a new CtrainError with code, message, and details.
// Details map is copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &CtrainError{Code: code, Msg: msg, Details: copyDetails(details)}
}

// Wrap creates a new CtrainError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &CtrainError{Code: code, Msg: msg, Cause: err}
}

// WrapWithDetails creates a new CtrainError wrapping an underlying error with details.
// Details map is copied (nil if empty).
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &CtrainError{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not a CtrainError.
func GetCode(err error) Code {
	var ce *CtrainError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// AsCtrainError returns (*CtrainError, true) if err is or wraps a CtrainError.
func AsCtrainError(err error) (*CtrainError, bool) {
	var ce *CtrainError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsArchiveError reports whether err is one of the archive error codes.
func IsArchiveError(err error) bool {
	switch GetCode(err) {
	case EArchiveFailed, EArchiveConflict, EAlreadyArchived:
		return true
	}
	return false
}

// IsTransient reports whether err is a round failure that may be retried.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ETrainFailed, EEvalFailed, ERoundTimeout, EMetricMissing, EScriptFailed:
		return true
	}
	return false
}

// copyDetails returns a copy of the details map, or nil if empty/nil.
func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

// ExitCode returns the appropriate exit code for an error.
// Returns 0 if err is nil, 2 for E_USAGE, 1 for all other errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if GetCode(err) == EUsage {
		return 2
	}
	return 1
}

// Print writes the error to w in the stable stderr format:
//
//	error_code: <CODE>
//	<message>
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	var ce *CtrainError
	if errors.As(err, &ce) {
		_, _ = fmt.Fprintf(w, "error_code: %s\n", ce.Code)
		_, _ = fmt.Fprintln(w, ce.Msg)
	} else {
		_, _ = fmt.Fprintln(w, err.Error())
	}
}
