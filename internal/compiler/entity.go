package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/navex/internal/model"
)

// CompileModel parses a CUE value holding `entity` and `relationship`
// structs into a validated model graph.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Blog: { key: ["Id"], property: { Id: int } }`)
//	m, err := CompileModel(v)
//
// Model integrity errors from the builder are returned wrapped, so
// model.IsConfigError still matches them.
func CompileModel(v cue.Value) (*model.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	b := model.NewBuilder()

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{
			Field:   "entity",
			Message: "at least one entity is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		def, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		b.AddEntity(*def)
	}

	relsVal := v.LookupPath(cue.ParsePath("relationship"))
	if relsVal.Exists() {
		relIter, err := relsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for relIter.Next() {
			def, err := CompileRelationship(relIter.Value())
			if err != nil {
				return nil, err
			}
			b.Relationship(*def)
		}
	}

	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	return m, nil
}

// CompileEntity parses one entity struct, e.g. the value at `entity.Blog`:
//
//	entity: Blog: {
//	    table: "blogs"            // optional
//	    key: ["Id"]
//	    alternate_keys: [["Slug"]] // optional
//	    property: { Id: int, Name: string, Rating: int | null }
//	}
//
// A property whose kind admits null is nullable.
func CompileEntity(v cue.Value) (*model.EntityDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &model.EntityDef{Name: labelOf(v)}

	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Table = table
	}

	propsVal := v.LookupPath(cue.ParsePath("property"))
	if !propsVal.Exists() {
		return nil, &CompileError{
			Field:   "property",
			Message: fmt.Sprintf("entity %s declares no properties", def.Name),
			Pos:     v.Pos(),
		}
	}
	iter, err := propsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		kind, nullable, err := extractKind(iter.Value())
		if err != nil {
			return nil, err
		}
		def.Properties = append(def.Properties, model.PropertyDef{
			Name:     iter.Label(),
			Kind:     kind,
			Nullable: nullable,
		})
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return nil, &CompileError{
			Field:   "key",
			Message: fmt.Sprintf("entity %s has no key", def.Name),
			Pos:     v.Pos(),
		}
	}
	def.Key, err = stringList(keyVal)
	if err != nil {
		return nil, err
	}

	if altVal := v.LookupPath(cue.ParsePath("alternate_keys")); altVal.Exists() {
		list, err := altVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			names, err := stringList(list.Value())
			if err != nil {
				return nil, err
			}
			def.AlternateKeys = append(def.AlternateKeys, names)
		}
	}

	return def, nil
}

// CompileRelationship parses one relationship struct:
//
//	relationship: PostBlog: {
//	    dependent:     "Post"
//	    principal:     "Blog"
//	    foreign_key:   ["BlogId"]
//	    principal_key: ["Id"]   // optional
//	    required:      true     // optional, default false
//	    unique:        false    // optional, default false
//	    navigation:    "Blog"   // optional
//	    inverse:       "Posts"  // optional
//	}
func CompileRelationship(v cue.Value) (*model.RelationshipDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &model.RelationshipDef{Name: labelOf(v)}
	var err error

	if def.Dependent, err = requiredString(v, "dependent"); err != nil {
		return nil, err
	}
	if def.Principal, err = requiredString(v, "principal"); err != nil {
		return nil, err
	}

	fkVal := v.LookupPath(cue.ParsePath("foreign_key"))
	if !fkVal.Exists() {
		return nil, &CompileError{
			Field:   "foreign_key",
			Message: fmt.Sprintf("relationship %s has no foreign_key", def.Name),
			Pos:     v.Pos(),
		}
	}
	if def.ForeignKey, err = stringList(fkVal); err != nil {
		return nil, err
	}

	if pkVal := v.LookupPath(cue.ParsePath("principal_key")); pkVal.Exists() {
		if def.PrincipalKey, err = stringList(pkVal); err != nil {
			return nil, err
		}
	}

	if def.Required, err = optionalBool(v, "required"); err != nil {
		return nil, err
	}
	if def.Unique, err = optionalBool(v, "unique"); err != nil {
		return nil, err
	}
	if def.Navigation, err = optionalString(v, "navigation"); err != nil {
		return nil, err
	}
	if def.Inverse, err = optionalString(v, "inverse"); err != nil {
		return nil, err
	}

	return def, nil
}

// extractKind converts a CUE property type to a scalar kind.
// Floats are rejected; `T | null` marks the property nullable.
func extractKind(v cue.Value) (model.ScalarKind, bool, error) {
	kind := v.IncompleteKind()
	nullable := kind&cue.NullKind != 0
	kind &^= cue.NullKind

	switch kind {
	case cue.StringKind:
		return model.KindString, nullable, nil
	case cue.IntKind:
		return model.KindInt, nullable, nil
	case cue.BoolKind:
		return model.KindBool, nullable, nil
	case cue.FloatKind, cue.NumberKind:
		return "", false, &CompileError{
			Field:   "type",
			Message: "float properties are not supported - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", false, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func labelOf(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	return strings.Trim(labels[len(labels)-1].String(), `"`)
}

func stringList(v cue.Value) ([]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}
