package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing a query.
//
// Runtime errors include:
//   - Cardinality: First or Single over no rows, Single over many
//   - Quota exceeded: an execution issued too many statements
//   - Unsupported: the expanded query has no relational form
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// CompilationID identifies the expansion that produced the query.
	CompilationID string

	// Operator is the terminal operator (for cardinality errors).
	Operator string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNoElements indicates First or Single found no rows.
	ErrCodeNoElements RuntimeErrorCode = "NO_ELEMENTS"

	// ErrCodeMultipleElements indicates Single found more than one row.
	ErrCodeMultipleElements RuntimeErrorCode = "MULTIPLE_ELEMENTS"

	// ErrCodeQuotaExceeded indicates the execution exceeded max queries.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnsupported indicates lowering or compilation failed.
	ErrCodeUnsupported RuntimeErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.CompilationID != "" && e.Operator != "" {
		return fmt.Sprintf("%s: %s (compilation=%s, operator=%s)", e.Code, e.Message, e.CompilationID, e.Operator)
	}
	if e.CompilationID != "" {
		return fmt.Sprintf("%s: %s (compilation=%s)", e.Code, e.Message, e.CompilationID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCardinalityError returns true if the error reports a First or Single
// violation. Uses errors.As to handle wrapped errors.
func IsCardinalityError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoElements || re.Code == ErrCodeMultipleElements
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and QueriesExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	var qe *QueriesExceededError
	return errors.As(err, &qe)
}

// RuntimeErrorCodeOf returns the code of a RuntimeError in err's chain,
// or "" when there is none.
func RuntimeErrorCodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// NewCardinalityError creates a RuntimeError for a First/Single violation.
func NewCardinalityError(code RuntimeErrorCode, compilationID, operator string) *RuntimeError {
	msg := "sequence contains no elements"
	if code == ErrCodeMultipleElements {
		msg = "sequence contains more than one element"
	}
	return &RuntimeError{
		Code:          code,
		Message:       msg,
		CompilationID: compilationID,
		Operator:      operator,
	}
}

func newUnsupportedError(compilationID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:          ErrCodeUnsupported,
		Message:       err.Error(),
		CompilationID: compilationID,
	}
}
