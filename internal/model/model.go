package model

import (
	"fmt"
	"slices"
)

// ScalarKind is the storage kind of a property.
// Floats are not supported; numeric keys and values are int64.
type ScalarKind string

const (
	KindInt    ScalarKind = "int"
	KindString ScalarKind = "string"
	KindBool   ScalarKind = "bool"
)

// Valid reports whether k is a supported scalar kind.
func (k ScalarKind) Valid() bool {
	switch k {
	case KindInt, KindString, KindBool:
		return true
	default:
		return false
	}
}

// Property is a scalar member of an entity type.
type Property struct {
	Name     string
	Kind     ScalarKind
	Nullable bool

	entity *EntityType
}

// DeclaringEntity returns the entity type that owns the property.
func (p *Property) DeclaringEntity() *EntityType {
	return p.entity
}

func (p *Property) String() string {
	return p.entity.Name + "." + p.Name
}

// Key is an ordered set of properties that uniquely identifies an entity.
type Key struct {
	Properties []*Property
	Primary    bool
}

// Names returns the key property names in declared order.
func (k *Key) Names() []string {
	return propertyNames(k.Properties)
}

// EntityType describes a mapped record type.
type EntityType struct {
	Name          string
	Table         string
	Properties    []*Property
	PrimaryKey    *Key
	AlternateKeys []*Key
	Navigations   []*Navigation
	ForeignKeys   []*ForeignKey
}

// FindProperty returns the property with the given name, or nil.
func (e *EntityType) FindProperty(name string) *Property {
	for _, p := range e.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// FindNavigation returns the navigation with the given name, or nil.
func (e *EntityType) FindNavigation(name string) *Navigation {
	for _, n := range e.Navigations {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// FindKey returns the primary or alternate key made of exactly props (in
// order), or nil.
func (e *EntityType) FindKey(props []*Property) *Key {
	if e.PrimaryKey != nil && slices.Equal(e.PrimaryKey.Properties, props) {
		return e.PrimaryKey
	}
	for _, k := range e.AlternateKeys {
		if slices.Equal(k.Properties, props) {
			return k
		}
	}
	return nil
}

// ForeignKey links dependent properties to a principal key.
type ForeignKey struct {
	// Name is the relationship name from the model definition.
	Name string

	DeclaringEntity *EntityType
	Properties      []*Property
	PrincipalEntity *EntityType
	PrincipalKey    *Key

	// Required means every dependent must reference an existing principal.
	Required bool
	// Unique means at most one dependent per principal (one-to-one).
	Unique bool

	DependentToPrincipal *Navigation
	PrincipalToDependent *Navigation
}

// Navigation is a named relationship member on an entity type.
type Navigation struct {
	Name            string
	DeclaringEntity *EntityType
	ForeignKey      *ForeignKey

	onDependent bool
}

// IsDependentToPrincipal reports whether the navigation is declared on the
// dependent side and points at the principal.
func (n *Navigation) IsDependentToPrincipal() bool {
	return n.onDependent
}

// TargetType returns the entity type reached by traversing the navigation.
func (n *Navigation) TargetType() *EntityType {
	if n.onDependent {
		return n.ForeignKey.PrincipalEntity
	}
	return n.ForeignKey.DeclaringEntity
}

// IsCollection reports whether the navigation yields many target entities.
func (n *Navigation) IsCollection() bool {
	return !n.onDependent && !n.ForeignKey.Unique
}

// IsRequired reports whether a target row always exists for every source
// row. Only dependent-to-principal navigations over a required foreign key
// qualify; a principal never guarantees that a dependent exists.
func (n *Navigation) IsRequired() bool {
	return n.onDependent && n.ForeignKey.Required
}

// ForeignKeyProperties returns the dependent-side key properties.
func (n *Navigation) ForeignKeyProperties() []*Property {
	return n.ForeignKey.Properties
}

// PrincipalKeyProperties returns the principal-side key properties.
func (n *Navigation) PrincipalKeyProperties() []*Property {
	return n.ForeignKey.PrincipalKey.Properties
}

// SourceKeyProperties returns the key properties read from the declaring
// entity when joining along the navigation.
func (n *Navigation) SourceKeyProperties() []*Property {
	if n.onDependent {
		return n.ForeignKeyProperties()
	}
	return n.PrincipalKeyProperties()
}

// TargetKeyProperties returns the key properties read from the target entity
// when joining along the navigation.
func (n *Navigation) TargetKeyProperties() []*Property {
	if n.onDependent {
		return n.PrincipalKeyProperties()
	}
	return n.ForeignKeyProperties()
}

// Inverse returns the navigation on the other side of the relationship, or
// nil when the relationship is unidirectional.
func (n *Navigation) Inverse() *Navigation {
	if n.onDependent {
		return n.ForeignKey.PrincipalToDependent
	}
	return n.ForeignKey.DependentToPrincipal
}

func (n *Navigation) String() string {
	return n.DeclaringEntity.Name + "." + n.Name
}

// Model is an immutable graph of entity types.
type Model struct {
	entities []*EntityType
	byName   map[string]*EntityType
}

// EntityTypes returns the entity types in declaration order.
func (m *Model) EntityTypes() []*EntityType {
	return slices.Clone(m.entities)
}

// FindEntityType returns the entity type with the given name, or nil.
func (m *Model) FindEntityType(name string) *EntityType {
	return m.byName[name]
}

// Navigation looks up a navigation by declaring entity and name.
// Returns nil when the entity type has no such navigation.
func (m *Model) Navigation(entity *EntityType, name string) *Navigation {
	if entity == nil {
		return nil
	}
	return entity.FindNavigation(name)
}

// MustEntityType is like FindEntityType but panics when the type is missing.
// Use only in tests or when the name is known to be valid.
func (m *Model) MustEntityType(name string) *EntityType {
	e := m.FindEntityType(name)
	if e == nil {
		panic(fmt.Sprintf("model: unknown entity type %q", name))
	}
	return e
}

func propertyNames(props []*Property) []string {
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
	}
	return names
}
