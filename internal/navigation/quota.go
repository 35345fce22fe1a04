package navigation

import (
	"errors"
	"fmt"
)

// DefaultMaxJoins is the default maximum number of joins one expansion may
// synthesise, sub-queries included. Deep include graphs grow joins quickly;
// the limit turns a runaway expansion into an error instead of a huge query.
const DefaultMaxJoins = 64

// JoinQuota counts the joins of one expansion and enforces a limit.
// A limit of zero or less disables the check.
type JoinQuota struct {
	maxJoins int
	current  int
}

// NewJoinQuota creates a quota with the given limit.
func NewJoinQuota(maxJoins int) *JoinQuota {
	return &JoinQuota{maxJoins: maxJoins}
}

// Check counts one more join for path and validates against the limit.
func (q *JoinQuota) Check(path string) error {
	q.current++
	if q.maxJoins > 0 && q.current > q.maxJoins {
		return &JoinLimitError{Path: path, Joins: q.current, Limit: q.maxJoins}
	}
	return nil
}

// Current returns the number of joins counted so far.
func (q *JoinQuota) Current() int {
	return q.current
}

// MaxJoins returns the limit.
func (q *JoinQuota) MaxJoins() int {
	return q.maxJoins
}

// JoinLimitError is returned when an expansion needs more joins than allowed.
type JoinLimitError struct {
	Path  string // The navigation whose join crossed the limit
	Joins int    // Number of joins including this one
	Limit int    // Maximum allowed joins
}

// Error implements the error interface.
func (e *JoinLimitError) Error() string {
	return fmt.Sprintf("joining %s exceeds max joins: %d joins > %d limit", e.Path, e.Joins, e.Limit)
}

// Unwrap exposes the error as a TranslationError with ErrCodeJoinLimit.
func (e *JoinLimitError) Unwrap() error {
	return &TranslationError{Code: ErrCodeJoinLimit, Message: e.Error()}
}

// IsJoinLimitError reports whether err is a JoinLimitError.
// Uses errors.As to handle wrapped errors.
func IsJoinLimitError(err error) bool {
	var le *JoinLimitError
	return errors.As(err, &le)
}

func (x *expansion) countJoin(path string) error {
	return x.quota.Check(path)
}
