package queryir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes composition and execution errors.
type ErrorCode string

const (
	// ErrCodeInvalidSortField indicates an order key references an unknown
	// or non-sortable field.
	ErrCodeInvalidSortField ErrorCode = "INVALID_SORT_FIELD"

	// ErrCodeProjectionArityMismatch indicates a projection whose target
	// can not accept the declared columns (count or type).
	ErrCodeProjectionArityMismatch ErrorCode = "PROJECTION_ARITY_MISMATCH"

	// ErrCodeUnknownField indicates a reference to an undeclared entity,
	// alias, field, or association.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeInvalidPage indicates offset < 0 or limit <= 0.
	ErrCodeInvalidPage ErrorCode = "INVALID_PAGE"

	// ErrCodeInvalidCondition indicates a malformed predicate: nil operands
	// in a conjunction, incomparable operand kinds, bad literals.
	ErrCodeInvalidCondition ErrorCode = "INVALID_CONDITION"

	// ErrCodeInvalidMutation indicates a malformed bulk update or delete.
	ErrCodeInvalidMutation ErrorCode = "INVALID_MUTATION"

	// ErrCodeNonUniqueResult indicates a single-row fetch matched several rows.
	ErrCodeNonUniqueResult ErrorCode = "NON_UNIQUE_RESULT"

	// ErrCodeExecutionFailure indicates the execution target rejected or
	// could not complete a submission.
	ErrCodeExecutionFailure ErrorCode = "EXECUTION_FAILURE"
)

// ErrNotFound is returned by single-row fetches that match nothing.
var ErrNotFound = errors.New("queryir: no matching row")

// QueryError is a composition-time error. It is always raised before the
// execution target is contacted.
type QueryError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending reference, when there is one.
	Field string
}

func (e *QueryError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, field, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps an error returned by the execution target.
// The cause is kept unmodified and reachable through errors.Is/As.
type ExecutionError struct {
	// Op is the submission that failed ("query", "count", "update", "delete").
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", ErrCodeExecutionFailure, e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Code returns the ErrorCode of err, or "" if err carries none.
func Code(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ErrCodeExecutionFailure
	}
	return ""
}

// IsInvalidSortField returns true if err is an INVALID_SORT_FIELD error.
func IsInvalidSortField(err error) bool {
	return Code(err) == ErrCodeInvalidSortField
}

// IsProjectionArityMismatch returns true if err is a
// PROJECTION_ARITY_MISMATCH error.
func IsProjectionArityMismatch(err error) bool {
	return Code(err) == ErrCodeProjectionArityMismatch
}

// IsExecutionFailure returns true if err came from the execution target.
func IsExecutionFailure(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
