package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a model definition error. Pos locates it in the CUE
// sources when known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	// More counts the CUE errors reported together with this one.
	More int

	err error
}

func (e *CompileError) Error() string {
	msg := e.Field + ": " + e.Message
	if e.More > 0 {
		msg = fmt.Sprintf("%s (and %d more errors)", msg, e.More)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	return msg
}

// Unwrap returns the CUE error the CompileError was built from, if any.
func (e *CompileError) Unwrap() error {
	return e.err
}

// formatCUEError turns a CUE evaluation error into a CompileError for its
// first underlying error. Positions are kept when CUE reports them.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "cue", Message: err.Error(), err: err}
	}

	ce := &CompileError{
		Field:   "cue",
		Message: errs[0].Error(),
		More:    len(errs) - 1,
		err:     err,
	}
	if positions := errors.Positions(errs[0]); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
