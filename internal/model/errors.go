package model

import (
	"errors"
	"fmt"
)

// ConfigErrorCode categorizes model configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeMissingProperty indicates a key or foreign key names a property
	// the entity does not declare.
	ErrCodeMissingProperty ConfigErrorCode = "MISSING_PROPERTY"

	// ErrCodeEmptyKey indicates a key or foreign key with no properties.
	ErrCodeEmptyKey ConfigErrorCode = "EMPTY_KEY"

	// ErrCodeKeyTypeMismatch indicates foreign-key and principal-key
	// components of different scalar kinds.
	ErrCodeKeyTypeMismatch ConfigErrorCode = "KEY_TYPE_MISMATCH"

	// ErrCodeKeyArityMismatch indicates foreign key and principal key have a
	// different number of properties.
	ErrCodeKeyArityMismatch ConfigErrorCode = "KEY_ARITY_MISMATCH"

	// ErrCodeDuplicateMember indicates a repeated entity, property or
	// navigation name.
	ErrCodeDuplicateMember ConfigErrorCode = "DUPLICATE_MEMBER"

	// ErrCodeUnknownEntity indicates a relationship names an entity type that
	// was never declared.
	ErrCodeUnknownEntity ConfigErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeInvalidKind indicates a property with an unsupported scalar kind.
	ErrCodeInvalidKind ConfigErrorCode = "INVALID_KIND"
)

// ConfigError reports an inconsistent entity model.
type ConfigError struct {
	Code       ConfigErrorCode
	Message    string
	Entity     string
	Navigation string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Entity != "" && e.Navigation != "" {
		return fmt.Sprintf("%s: %s (entity=%s, navigation=%s)", e.Code, e.Message, e.Entity, e.Navigation)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of a wrapped *ConfigError, or "".
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
