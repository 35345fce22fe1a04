package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxQueries is the default maximum number of statements one
// execution may run: the main query plus every collection query.
const DefaultMaxQueries = 100

// QueryQuota counts the statements of one execution and enforces a
// maximum.
//
// Each execution has its own QueryQuota instance. The quota is checked
// before every statement is sent to the store.
type QueryQuota struct {
	maxQueries int // Maximum allowed statements for this execution
	current    int // Statements run so far
}

// NewQueryQuota creates a new quota with the given limit.
// A limit of zero or less disables the check.
func NewQueryQuota(maxQueries int) *QueryQuota {
	return &QueryQuota{maxQueries: maxQueries}
}

// Check increments the statement counter and validates against the limit.
//
// Returns QueriesExceededError if the quota is exceeded.
func (q *QueryQuota) Check(compilationID string) error {
	q.current++
	if q.maxQueries > 0 && q.current > q.maxQueries {
		return &QueriesExceededError{
			CompilationID: compilationID,
			Queries:       q.current,
			Limit:         q.maxQueries,
		}
	}
	return nil
}

// Current returns the number of statements counted so far.
// Used for logging and diagnostics.
func (q *QueryQuota) Current() int {
	return q.current
}

// MaxQueries returns the limit.
func (q *QueryQuota) MaxQueries() int {
	return q.maxQueries
}

// QueriesExceededError is returned when an execution needs more statements
// than allowed.
type QueriesExceededError struct {
	CompilationID string // The expansion whose query crossed the limit
	Queries       int    // Number of statements including this one
	Limit         int    // Maximum allowed statements
}

// Error implements the error interface.
func (e *QueriesExceededError) Error() string {
	return fmt.Sprintf("compilation %s exceeded max queries quota: %d queries > %d limit",
		e.CompilationID, e.Queries, e.Limit)
}

// Unwrap exposes the error as a RuntimeError with ErrCodeQuotaExceeded.
func (e *QueriesExceededError) Unwrap() error {
	return &RuntimeError{
		Code:          ErrCodeQuotaExceeded,
		Message:       e.Error(),
		CompilationID: e.CompilationID,
		Details: map[string]string{
			"queries":     fmt.Sprintf("%d", e.Queries),
			"max_queries": fmt.Sprintf("%d", e.Limit),
		},
	}
}

// IsQueriesExceededError returns true if the error is a QueriesExceededError.
// Uses errors.As to handle wrapped errors.
func IsQueriesExceededError(err error) bool {
	var qe *QueriesExceededError
	return errors.As(err, &qe)
}
