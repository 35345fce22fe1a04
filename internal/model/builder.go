package model

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// PropertyDef declares a scalar property.
type PropertyDef struct {
	Name     string
	Kind     ScalarKind
	Nullable bool
}

// EntityDef declares an entity type.
type EntityDef struct {
	Name string
	// Table defaults to the pluralized snake_case entity name.
	Table         string
	Properties    []PropertyDef
	Key           []string
	AlternateKeys [][]string
}

// RelationshipDef declares a foreign key and its navigations.
type RelationshipDef struct {
	Name       string
	Dependent  string
	Principal  string
	ForeignKey []string
	// PrincipalKey defaults to the principal's primary key. Naming other
	// properties declares an alternate key on the principal.
	PrincipalKey []string
	Required     bool
	Unique       bool
	// Navigation is the dependent-to-principal member name (optional).
	Navigation string
	// Inverse is the principal-to-dependent member name (optional).
	Inverse string
}

// Builder accumulates entity and relationship definitions.
//
// Example:
//
//	b := model.NewBuilder()
//	b.Entity("Blog").Property("Id", model.KindInt).Property("Name", model.KindString).Key("Id")
//	b.Entity("Post").Property("Id", model.KindInt).Property("BlogId", model.KindInt).Key("Id")
//	b.Relationship(model.RelationshipDef{
//	    Dependent: "Post", Principal: "Blog", ForeignKey: []string{"BlogId"},
//	    Required: true, Navigation: "Blog", Inverse: "Posts",
//	})
//	m, err := b.Build()
type Builder struct {
	entities      []*EntityDef
	relationships []RelationshipDef
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// EntityBuilder configures one entity definition.
type EntityBuilder struct {
	def *EntityDef
}

// Entity starts (or continues) the definition of an entity type.
func (b *Builder) Entity(name string) *EntityBuilder {
	for _, def := range b.entities {
		if def.Name == name {
			return &EntityBuilder{def: def}
		}
	}
	def := &EntityDef{Name: name}
	b.entities = append(b.entities, def)
	return &EntityBuilder{def: def}
}

// AddEntity appends a complete definition.
func (b *Builder) AddEntity(def EntityDef) {
	b.entities = append(b.entities, &def)
}

// Relationship appends a relationship definition.
func (b *Builder) Relationship(def RelationshipDef) *Builder {
	b.relationships = append(b.relationships, def)
	return b
}

// Table overrides the table name.
func (e *EntityBuilder) Table(name string) *EntityBuilder {
	e.def.Table = name
	return e
}

// Property declares a non-nullable property.
func (e *EntityBuilder) Property(name string, kind ScalarKind) *EntityBuilder {
	e.def.Properties = append(e.def.Properties, PropertyDef{Name: name, Kind: kind})
	return e
}

// NullableProperty declares a nullable property.
func (e *EntityBuilder) NullableProperty(name string, kind ScalarKind) *EntityBuilder {
	e.def.Properties = append(e.def.Properties, PropertyDef{Name: name, Kind: kind, Nullable: true})
	return e
}

// Key sets the primary key.
func (e *EntityBuilder) Key(names ...string) *EntityBuilder {
	e.def.Key = names
	return e
}

// AlternateKey declares an additional unique key.
func (e *EntityBuilder) AlternateKey(names ...string) *EntityBuilder {
	e.def.AlternateKeys = append(e.def.AlternateKeys, names)
	return e
}

// Build validates all definitions and returns the model graph.
// Returns the first *ConfigError found.
func (b *Builder) Build() (*Model, error) {
	m := &Model{byName: make(map[string]*EntityType, len(b.entities))}

	for _, def := range b.entities {
		entity, err := buildEntity(def)
		if err != nil {
			return nil, err
		}
		if _, dup := m.byName[entity.Name]; dup {
			return nil, &ConfigError{
				Code:    ErrCodeDuplicateMember,
				Message: "entity type declared twice",
				Entity:  entity.Name,
			}
		}
		m.byName[entity.Name] = entity
		m.entities = append(m.entities, entity)
	}

	for i, rel := range b.relationships {
		if rel.Name == "" {
			rel.Name = fmt.Sprintf("FK_%s_%s_%d", rel.Dependent, rel.Principal, i)
		}
		if err := m.addRelationship(rel); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func buildEntity(def *EntityDef) (*EntityType, error) {
	entity := &EntityType{Name: def.Name, Table: def.Table}
	if entity.Table == "" {
		entity.Table = TableName(def.Name)
	}

	for _, pd := range def.Properties {
		if !pd.Kind.Valid() {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidKind,
				Message: fmt.Sprintf("property %q has unsupported kind %q", pd.Name, pd.Kind),
				Entity:  def.Name,
			}
		}
		if entity.FindProperty(pd.Name) != nil {
			return nil, &ConfigError{
				Code:    ErrCodeDuplicateMember,
				Message: fmt.Sprintf("property %q declared twice", pd.Name),
				Entity:  def.Name,
			}
		}
		entity.Properties = append(entity.Properties, &Property{
			Name:     pd.Name,
			Kind:     pd.Kind,
			Nullable: pd.Nullable,
			entity:   entity,
		})
	}

	if len(def.Key) == 0 {
		return nil, &ConfigError{
			Code:    ErrCodeEmptyKey,
			Message: "primary key is required",
			Entity:  def.Name,
		}
	}
	pk, err := resolveProperties(entity, def.Key, "")
	if err != nil {
		return nil, err
	}
	entity.PrimaryKey = &Key{Properties: pk, Primary: true}

	for _, names := range def.AlternateKeys {
		if len(names) == 0 {
			return nil, &ConfigError{Code: ErrCodeEmptyKey, Message: "alternate key has no properties", Entity: def.Name}
		}
		props, err := resolveProperties(entity, names, "")
		if err != nil {
			return nil, err
		}
		entity.AlternateKeys = append(entity.AlternateKeys, &Key{Properties: props})
	}

	return entity, nil
}

func (m *Model) addRelationship(rel RelationshipDef) error {
	dependent := m.byName[rel.Dependent]
	if dependent == nil {
		return &ConfigError{
			Code:    ErrCodeUnknownEntity,
			Message: fmt.Sprintf("relationship %q: unknown dependent %q", rel.Name, rel.Dependent),
		}
	}
	principal := m.byName[rel.Principal]
	if principal == nil {
		return &ConfigError{
			Code:    ErrCodeUnknownEntity,
			Message: fmt.Sprintf("relationship %q: unknown principal %q", rel.Name, rel.Principal),
		}
	}

	if len(rel.ForeignKey) == 0 {
		return &ConfigError{
			Code:       ErrCodeEmptyKey,
			Message:    fmt.Sprintf("relationship %q has no foreign-key properties", rel.Name),
			Entity:     dependent.Name,
			Navigation: rel.Navigation,
		}
	}
	fkProps, err := resolveProperties(dependent, rel.ForeignKey, rel.Navigation)
	if err != nil {
		return err
	}

	principalKey := principal.PrimaryKey
	if len(rel.PrincipalKey) > 0 {
		props, err := resolveProperties(principal, rel.PrincipalKey, rel.Inverse)
		if err != nil {
			return err
		}
		principalKey = principal.FindKey(props)
		if principalKey == nil {
			principalKey = &Key{Properties: props}
			principal.AlternateKeys = append(principal.AlternateKeys, principalKey)
		}
	}

	if len(fkProps) != len(principalKey.Properties) {
		return &ConfigError{
			Code: ErrCodeKeyArityMismatch,
			Message: fmt.Sprintf("relationship %q: foreign key %v has %d properties, principal key %v has %d",
				rel.Name, propertyNames(fkProps), len(fkProps),
				principalKey.Names(), len(principalKey.Properties)),
			Entity:     dependent.Name,
			Navigation: rel.Navigation,
		}
	}
	for i, fp := range fkProps {
		pp := principalKey.Properties[i]
		if fp.Kind != pp.Kind {
			return &ConfigError{
				Code: ErrCodeKeyTypeMismatch,
				Message: fmt.Sprintf("relationship %q: %s (%s) does not match %s (%s)",
					rel.Name, fp, fp.Kind, pp, pp.Kind),
				Entity:     dependent.Name,
				Navigation: rel.Navigation,
			}
		}
	}

	fk := &ForeignKey{
		Name:            rel.Name,
		DeclaringEntity: dependent,
		Properties:      fkProps,
		PrincipalEntity: principal,
		PrincipalKey:    principalKey,
		Required:        rel.Required,
		Unique:          rel.Unique,
	}

	if rel.Navigation != "" {
		nav, err := addNavigation(dependent, rel.Navigation, fk, true)
		if err != nil {
			return err
		}
		fk.DependentToPrincipal = nav
	}
	if rel.Inverse != "" {
		nav, err := addNavigation(principal, rel.Inverse, fk, false)
		if err != nil {
			return err
		}
		fk.PrincipalToDependent = nav
	}

	dependent.ForeignKeys = append(dependent.ForeignKeys, fk)
	return nil
}

func addNavigation(entity *EntityType, name string, fk *ForeignKey, onDependent bool) (*Navigation, error) {
	if entity.FindProperty(name) != nil || entity.FindNavigation(name) != nil {
		return nil, &ConfigError{
			Code:       ErrCodeDuplicateMember,
			Message:    fmt.Sprintf("member %q already declared", name),
			Entity:     entity.Name,
			Navigation: name,
		}
	}
	nav := &Navigation{
		Name:            name,
		DeclaringEntity: entity,
		ForeignKey:      fk,
		onDependent:     onDependent,
	}
	entity.Navigations = append(entity.Navigations, nav)
	return nav, nil
}

func resolveProperties(entity *EntityType, names []string, navigation string) ([]*Property, error) {
	props := make([]*Property, 0, len(names))
	for _, name := range names {
		p := entity.FindProperty(name)
		if p == nil {
			return nil, &ConfigError{
				Code:       ErrCodeMissingProperty,
				Message:    fmt.Sprintf("property %q is not declared", name),
				Entity:     entity.Name,
				Navigation: navigation,
			}
		}
		props = append(props, p)
	}
	return props, nil
}

// TableName derives the default table name for an entity type:
// snake_case with the last word pluralized ("OrderLine" -> "order_lines").
func TableName(entity string) string {
	var b strings.Builder
	for i, r := range entity {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return inflection.Plural(b.String())
}
