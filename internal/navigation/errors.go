package navigation

import (
	"errors"
	"fmt"

	"github.com/roach88/navex/internal/model"
)

// TranslationError reports a query the engine cannot rewrite.
type TranslationError struct {
	// Code identifies the error category.
	Code TranslationErrorCode

	// Message is a human-readable description.
	Message string

	// Entity is the declaring entity of the offending member, if any.
	Entity string

	// Navigation is the offending navigation name, if any.
	Navigation string
}

// TranslationErrorCode categorizes translation errors.
type TranslationErrorCode string

const (
	// ErrCodeUnknownMember indicates a member that is neither a property nor
	// a navigation of the entity it is read from.
	ErrCodeUnknownMember TranslationErrorCode = "UNKNOWN_MEMBER"

	// ErrCodeNoKey indicates a navigation whose far side has no usable key.
	ErrCodeNoKey TranslationErrorCode = "NO_KEY"

	// ErrCodeInvalidInclude indicates an include path that does not resolve
	// to a chain of navigations.
	ErrCodeInvalidInclude TranslationErrorCode = "INVALID_INCLUDE"

	// ErrCodeSetOperationIncludes indicates set operation operands that
	// include different navigations.
	ErrCodeSetOperationIncludes TranslationErrorCode = "SET_OPERATION_INCLUDES"

	// ErrCodeJoinLimit indicates an expansion that needed more joins than
	// the configured limit.
	ErrCodeJoinLimit TranslationErrorCode = "JOIN_LIMIT"

	// ErrCodeUnsupported indicates a query shape the engine does not handle.
	ErrCodeUnsupported TranslationErrorCode = "UNSUPPORTED"
)

// Error implements the error interface.
func (e *TranslationError) Error() string {
	if e.Entity != "" && e.Navigation != "" {
		return fmt.Sprintf("%s: %s (entity=%s, navigation=%s)", e.Code, e.Message, e.Entity, e.Navigation)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsTranslationError reports whether err is a TranslationError.
// Uses errors.As to handle wrapped errors.
func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}

// TranslationErrorCodeOf returns the code of a wrapped TranslationError, or "".
func TranslationErrorCodeOf(err error) TranslationErrorCode {
	var te *TranslationError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func unsupported(format string, args ...any) *TranslationError {
	return &TranslationError{Code: ErrCodeUnsupported, Message: fmt.Sprintf(format, args...)}
}

func unknownMember(entity *model.EntityType, name string) *TranslationError {
	return &TranslationError{
		Code:    ErrCodeUnknownMember,
		Message: fmt.Sprintf("%q is not a property or navigation", name),
		Entity:  entity.Name,
	}
}

func navigationError(code TranslationErrorCode, nav *model.Navigation, format string, args ...any) *TranslationError {
	return &TranslationError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Entity:     nav.DeclaringEntity.Name,
		Navigation: nav.Name,
	}
}

func invalidInclude(path string) *TranslationError {
	return &TranslationError{
		Code:    ErrCodeInvalidInclude,
		Message: fmt.Sprintf("invalid include path %q", path),
	}
}
