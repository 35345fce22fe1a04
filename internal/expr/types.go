package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/navex/internal/model"
)

// TypeKind classifies the shape of a value flowing through a query.
type TypeKind int

const (
	TypeScalar TypeKind = iota
	TypeEntity
	TypeSequence
	TypePair
	TypeObject
)

// Field is a named member of a pair or object type.
type Field struct {
	Name string
	Type *Type
}

// Type describes the static shape of an expression.
//
// Pair types always have exactly two fields named Outer and Inner; they are
// the row shape produced by a join. Object types are anonymous projections.
type Type struct {
	Kind     TypeKind
	Scalar   model.ScalarKind
	Nullable bool
	Entity   *model.EntityType
	Elem     *Type
	Fields   []Field
}

// Pair member names.
const (
	OuterField = "Outer"
	InnerField = "Inner"
)

var (
	BoolType   = &Type{Kind: TypeScalar, Scalar: model.KindBool}
	IntType    = &Type{Kind: TypeScalar, Scalar: model.KindInt}
	StringType = &Type{Kind: TypeScalar, Scalar: model.KindString}
)

// ScalarOf returns the scalar type of kind k.
func ScalarOf(k model.ScalarKind, nullable bool) *Type {
	return &Type{Kind: TypeScalar, Scalar: k, Nullable: nullable}
}

// PropertyType returns the type of reading p.
func PropertyType(p *model.Property) *Type {
	return ScalarOf(p.Kind, p.Nullable)
}

// EntityOf returns the entity type for e.
func EntityOf(e *model.EntityType) *Type {
	return &Type{Kind: TypeEntity, Entity: e}
}

// SequenceOf returns a sequence type of elem.
func SequenceOf(elem *Type) *Type {
	return &Type{Kind: TypeSequence, Elem: elem}
}

// PairOf returns the transparent pair type produced by a join.
func PairOf(outer, inner *Type) *Type {
	return &Type{Kind: TypePair, Fields: []Field{
		{Name: OuterField, Type: outer},
		{Name: InnerField, Type: inner},
	}}
}

// ObjectOf returns an anonymous object type.
func ObjectOf(fields ...Field) *Type {
	return &Type{Kind: TypeObject, Fields: fields}
}

// Field returns the type of the named pair/object field, or nil.
func (t *Type) Field(name string) *Type {
	if t == nil {
		return nil
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return nil
}

// ElementType returns the element type of a sequence, or t itself.
func (t *Type) ElementType() *Type {
	if t != nil && t.Kind == TypeSequence {
		return t.Elem
	}
	return t
}

// IsSequence reports whether t is a sequence type.
func (t *Type) IsSequence() bool {
	return t != nil && t.Kind == TypeSequence
}

// AsNullable returns a copy of t marked nullable. Scalars and entities carry
// nullability; other shapes are returned unchanged.
func (t *Type) AsNullable() *Type {
	if t == nil || t.Nullable {
		return t
	}
	switch t.Kind {
	case TypeScalar, TypeEntity:
		c := *t
		c.Nullable = true
		return &c
	default:
		return t
	}
}

// AsNonNullable returns a copy of t without the nullable mark.
func (t *Type) AsNonNullable() *Type {
	if t == nil || !t.Nullable {
		return t
	}
	c := *t
	c.Nullable = false
	return &c
}

// Equal reports structural equality.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Nullable != o.Nullable {
		return false
	}
	switch t.Kind {
	case TypeScalar:
		return t.Scalar == o.Scalar
	case TypeEntity:
		return t.Entity == o.Entity
	case TypeSequence:
		return t.Elem.Equal(o.Elem)
	default:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	suffix := ""
	if t.Nullable {
		suffix = "?"
	}
	switch t.Kind {
	case TypeScalar:
		return string(t.Scalar) + suffix
	case TypeEntity:
		return t.Entity.Name + suffix
	case TypeSequence:
		return fmt.Sprintf("Seq<%s>", t.Elem)
	case TypePair:
		return fmt.Sprintf("Pair<%s, %s>", t.Fields[0].Type, t.Fields[1].Type)
	default:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + ": " + f.Type.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
}

// MemberType resolves the type of accessing name on a value of type t.
//
// Entity members resolve to properties first, then navigations. Reading
// through a nullable entity yields nullable scalars and references.
func MemberType(t *Type, name string) (*Type, error) {
	if t == nil {
		return nil, fmt.Errorf("member %q on untyped expression", name)
	}
	switch t.Kind {
	case TypeEntity:
		if p := t.Entity.FindProperty(name); p != nil {
			pt := PropertyType(p)
			if t.Nullable {
				pt = pt.AsNullable()
			}
			return pt, nil
		}
		if nav := t.Entity.FindNavigation(name); nav != nil {
			target := EntityOf(nav.TargetType())
			if nav.IsCollection() {
				return SequenceOf(target), nil
			}
			if !nav.IsRequired() || t.Nullable {
				target = target.AsNullable()
			}
			return target, nil
		}
		return nil, fmt.Errorf("entity %s has no member %q", t.Entity.Name, name)
	case TypePair, TypeObject:
		if ft := t.Field(name); ft != nil {
			return ft, nil
		}
		return nil, fmt.Errorf("type %s has no member %q", t, name)
	default:
		return nil, fmt.Errorf("type %s has no member %q", t, name)
	}
}
