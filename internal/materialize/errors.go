package materialize

import (
	"errors"
	"fmt"
)

// ShapeError reports a row that does not match the query's static type.
type ShapeError struct {
	// Column is the dotted column path being read.
	Column string

	// Row is the zero-based index of the offending row.
	Row int

	Message string
}

func (e *ShapeError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d column %q: %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// IsShapeError returns true if the error is a ShapeError.
// Uses errors.As to handle wrapped errors.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
