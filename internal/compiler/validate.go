package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/navex/internal/model"
)

// Validation error codes (E100-E199)
const (
	ErrUnsupportedValue = "E100" // value is not a model definition

	// Entity errors (E101-E109)
	ErrEntityNoProperties = "E101" // property block missing
	ErrEntityNoKey        = "E102" // key missing or empty
	ErrInvalidFieldType   = "E104" // unsupported property type
	ErrDuplicateName      = "E105" // duplicate entity/property/navigation
	ErrFloatTypeForbidden = "E106" // float property

	// Relationship errors (E110-E119)
	ErrRelationshipField    = "E110" // dependent/principal/foreign_key missing
	ErrUnknownEntity        = "E111" // relationship names unknown entity
	ErrMissingProperty      = "E112" // key names unknown property
	ErrKeyTypeMismatch      = "E113" // foreign key kind differs from principal key
	ErrKeyArityMismatch     = "E114" // foreign key length differs from principal key
	ErrRequiredRelationship = "E115" // required-relationship cycle (warning level)
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a CUE model definition and returns every error found
// (does not fail-fast). Each entity and relationship is compiled on its own
// so one broken definition does not hide the others; graph-level checks run
// only once every definition parses.
func Validate(v cue.Value) []ValidationError {
	var errs []ValidationError
	if err := v.Err(); err != nil {
		return []ValidationError{fromError("cue", err)}
	}

	b := model.NewBuilder()
	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return []ValidationError{{Field: "entity", Message: "at least one entity is required", Code: ErrUnsupportedValue}}
	}

	if iter, err := entitiesVal.Fields(); err != nil {
		errs = append(errs, fromError("entity", err))
	} else {
		for iter.Next() {
			def, err := CompileEntity(iter.Value())
			if err != nil {
				errs = append(errs, fromError("entity."+iter.Label(), err))
				continue
			}
			b.AddEntity(*def)
		}
	}

	if relsVal := v.LookupPath(cue.ParsePath("relationship")); relsVal.Exists() {
		if iter, err := relsVal.Fields(); err != nil {
			errs = append(errs, fromError("relationship", err))
		} else {
			for iter.Next() {
				def, err := CompileRelationship(iter.Value())
				if err != nil {
					errs = append(errs, fromError("relationship."+iter.Label(), err))
					continue
				}
				b.Relationship(*def)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}

	if _, err := b.Build(); err != nil {
		errs = append(errs, fromError("model", err))
	}
	return errs
}

// fromError converts compile and configuration errors to ValidationError.
func fromError(field string, err error) ValidationError {
	var ce *CompileError
	if errors.As(err, &ce) {
		line := 0
		if ce.Pos.IsValid() {
			line = ce.Pos.Line()
		}
		return ValidationError{
			Field:   field + "." + ce.Field,
			Message: ce.Message,
			Code:    codeForField(ce.Field, ce.Message),
			Line:    line,
		}
	}

	var cfg *model.ConfigError
	if errors.As(err, &cfg) {
		return ValidationError{
			Field:   field,
			Message: cfg.Error(),
			Code:    codeForConfig(cfg.Code),
		}
	}

	return ValidationError{Field: field, Message: err.Error(), Code: ErrUnsupportedValue}
}

func codeForField(field, message string) string {
	switch field {
	case "property":
		return ErrEntityNoProperties
	case "key":
		return ErrEntityNoKey
	case "type":
		if isFloatMessage(message) {
			return ErrFloatTypeForbidden
		}
		return ErrInvalidFieldType
	case "dependent", "principal", "foreign_key":
		return ErrRelationshipField
	default:
		return ErrUnsupportedValue
	}
}

func codeForConfig(code model.ConfigErrorCode) string {
	switch code {
	case model.ErrCodeMissingProperty:
		return ErrMissingProperty
	case model.ErrCodeEmptyKey:
		return ErrEntityNoKey
	case model.ErrCodeKeyTypeMismatch:
		return ErrKeyTypeMismatch
	case model.ErrCodeKeyArityMismatch:
		return ErrKeyArityMismatch
	case model.ErrCodeDuplicateMember:
		return ErrDuplicateName
	case model.ErrCodeUnknownEntity:
		return ErrUnknownEntity
	case model.ErrCodeInvalidKind:
		return ErrInvalidFieldType
	default:
		return ErrUnsupportedValue
	}
}

func isFloatMessage(message string) bool {
	return len(message) >= 5 && message[:5] == "float"
}
