package materialize

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/model"
	"github.com/roach88/navex/internal/navigation"
	"github.com/roach88/navex/internal/queryir"
)

// Loader runs a collection query and returns its materialized targets.
// Only the targets owned by keys are needed; each key holds the owner key
// values in the order of q.OwnerKey. The engine implements it.
type Loader interface {
	Load(ctx context.Context, q *navigation.CollectionQuery, keys []ir.IRArray) (ir.IRArray, error)
}

// Materialize turns the rows of res's query into result elements.
//
// For sequence queries each row yields one element. For First and Single
// the rows are the candidates for the single element, and for Count, Any
// and All the one row holds the aggregate. Reducing candidates to one
// value is the caller's job.
//
// Rows are shaped and their reference includes attached first. Every
// collection query then runs once for the owners found in all rows.
func Materialize(ctx context.Context, loader Loader, res *navigation.Result, rows []ir.IRObject) (ir.IRArray, error) {
	t := RowType(res)
	if t == nil {
		return nil, fmt.Errorf("materialize: expression has no type")
	}

	m := &materializer{
		ctx:         ctx,
		loader:      loader,
		res:         res,
		identities:  map[string]ir.IRObject{},
		owners:      map[*navigation.CollectionQuery]*ownerKeys{},
		collections: map[*navigation.CollectionQuery]map[string]ir.IRArray{},
	}

	shaped := make([]ir.IRValue, len(rows))
	for i, row := range rows {
		m.row = i
		v, err := m.shape(row, nil, t)
		if err != nil {
			return nil, err
		}
		if err := m.applyReferences(v); err != nil {
			return nil, err
		}
		if err := m.gatherOwners(row, v); err != nil {
			return nil, err
		}
		shaped[i] = v
	}
	if err := m.loadCollections(); err != nil {
		return nil, err
	}

	out := make(ir.IRArray, 0, len(rows))
	for i, row := range rows {
		m.row = i
		m.applyCollectionIncludes(shaped[i])
		elem, err := m.element(shaped[i])
		if err != nil {
			return nil, err
		}
		if elem, err = m.applyCollections(row, elem); err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
	return out, nil
}

// RowType returns the type of one row of res's query.
func RowType(res *navigation.Result) *expr.Type {
	if res == nil || res.Expression == nil {
		return nil
	}
	t := res.Expression.Type()
	if t.IsSequence() {
		return t.ElementType()
	}
	return t
}

type materializer struct {
	ctx    context.Context
	loader Loader
	res    *navigation.Result
	row    int

	identities  map[string]ir.IRObject
	owners      map[*navigation.CollectionQuery]*ownerKeys
	order       []*navigation.CollectionQuery
	collections map[*navigation.CollectionQuery]map[string]ir.IRArray
}

// ownerKeys are the distinct owner keys of one collection query, in the
// order first met.
type ownerKeys struct {
	seen map[string]bool
	keys []ir.IRArray
}

// shape builds the value of type t whose columns start at path.
func (m *materializer) shape(row ir.IRObject, path []string, t *expr.Type) (ir.IRValue, error) {
	switch t.Kind {
	case expr.TypeScalar:
		return m.scalar(row, queryir.ColumnName(path), t.Scalar)

	case expr.TypeEntity:
		return m.entity(row, path, t.Entity)

	case expr.TypePair, expr.TypeObject:
		obj := make(ir.IRObject, len(t.Fields))
		for _, f := range t.Fields {
			if f.Type.IsSequence() {
				// Filled in by applyCollections.
				continue
			}
			v, err := m.shape(row, append(slices.Clone(path), f.Name), f.Type)
			if err != nil {
				return nil, err
			}
			obj[f.Name] = v
		}
		return obj, nil

	case expr.TypeSequence:
		// A projected collection as the whole element.
		return ir.IRArray{}, nil

	default:
		return nil, &ShapeError{Row: m.row, Column: queryir.ColumnName(path), Message: fmt.Sprintf("cannot materialize %s", t)}
	}
}

func (m *materializer) scalar(row ir.IRObject, col string, kind model.ScalarKind) (ir.IRValue, error) {
	v, ok := row[col]
	if !ok {
		return nil, &ShapeError{Row: m.row, Column: col, Message: "missing from result"}
	}
	return coerce(v, kind)
}

// entity reads an entity's properties and resolves it against the entities
// already materialized.
func (m *materializer) entity(row ir.IRObject, path []string, e *model.EntityType) (ir.IRValue, error) {
	obj := make(ir.IRObject, len(e.Properties))
	for _, p := range e.Properties {
		v, err := m.scalar(row, queryir.ColumnName(append(slices.Clone(path), p.Name)), p.Kind)
		if err != nil {
			return nil, err
		}
		obj[p.Name] = v
	}
	if e.PrimaryKey == nil {
		return obj, nil
	}

	key, ok := keyOf(obj, e.PrimaryKey.Names())
	if !ok {
		return ir.IRNull{}, nil
	}
	id := e.Name + "\x00" + key
	if existing, ok := m.identities[id]; ok {
		return existing, nil
	}
	m.identities[id] = obj
	return obj, nil
}

// applyReferences attaches the included reference targets of a shaped row
// to their owners, in instruction order. A target that already reaches its
// owner is attached as a copy of its properties, so an entity never
// contains itself.
func (m *materializer) applyReferences(row ir.IRValue) error {
	for _, inc := range m.res.Includes {
		if inc.Collection != nil {
			continue
		}
		owner, ok := lookup(row, inc.OwnerPath).(ir.IRObject)
		if !ok {
			// Owner is null for this row.
			continue
		}
		target := lookup(row, inc.TargetPath)
		if obj, ok := target.(ir.IRObject); ok && reaches(obj, owner) {
			target = properties(obj, inc.Navigation.TargetType())
		}
		if target == nil {
			target = ir.IRNull{}
		}
		owner[inc.Navigation.Name] = target
	}
	return nil
}

// applyCollectionIncludes attaches loaded collection targets to the owners
// of a shaped row. An owner shared by several rows is filled once.
func (m *materializer) applyCollectionIncludes(row ir.IRValue) {
	for _, inc := range m.res.Includes {
		if inc.Collection == nil {
			continue
		}
		owner, ok := lookup(row, inc.OwnerPath).(ir.IRObject)
		if !ok {
			continue
		}
		if _, done := owner[inc.Navigation.Name]; done {
			continue
		}
		owner[inc.Navigation.Name] = m.collection(inc.Collection, owner)
	}
}

// gatherOwners records the owner keys of every collection the row needs.
func (m *materializer) gatherOwners(row ir.IRObject, shaped ir.IRValue) error {
	for _, inc := range m.res.Includes {
		if inc.Collection == nil {
			continue
		}
		if owner, ok := lookup(shaped, inc.OwnerPath).(ir.IRObject); ok {
			m.addOwner(inc.Collection, owner)
		}
	}
	for _, pc := range m.res.Collections {
		key, err := m.projectedKey(row, pc)
		if err != nil {
			return err
		}
		m.addOwner(pc.Query, key)
	}
	return nil
}

func (m *materializer) addOwner(q *navigation.CollectionQuery, owner ir.IRObject) {
	k, ok := keyOf(owner, q.OwnerKey)
	if !ok {
		return
	}
	set, ok := m.owners[q]
	if !ok {
		set = &ownerKeys{seen: map[string]bool{}}
		m.owners[q] = set
		m.order = append(m.order, q)
	}
	if set.seen[k] {
		return
	}
	set.seen[k] = true
	values := make(ir.IRArray, len(q.OwnerKey))
	for i, n := range q.OwnerKey {
		values[i] = owner[n]
	}
	set.keys = append(set.keys, values)
}

// loadCollections runs each collection query once for the owners gathered
// and groups its targets by key.
func (m *materializer) loadCollections() error {
	for _, q := range m.order {
		if m.loader == nil {
			return fmt.Errorf("no loader for collection queries")
		}
		targets, err := m.loader.Load(m.ctx, q, m.owners[q].keys)
		if err != nil {
			return fmt.Errorf("collection %s: %w", q.Navigation, err)
		}
		groups := map[string]ir.IRArray{}
		for _, t := range targets {
			obj, ok := t.(ir.IRObject)
			if !ok {
				continue
			}
			k, ok := keyOf(obj, q.TargetKey)
			if !ok {
				continue
			}
			groups[k] = append(groups[k], obj)
		}
		m.collections[q] = groups
	}
	return nil
}

// reaches reports whether to can be found from from by following object
// members and array elements.
func reaches(from, to ir.IRObject) bool {
	target := reflect.ValueOf(to).Pointer()
	seen := map[uintptr]bool{}
	var walk func(v ir.IRValue) bool
	walk = func(v ir.IRValue) bool {
		switch v := v.(type) {
		case ir.IRObject:
			id := reflect.ValueOf(v).Pointer()
			if id == target {
				return true
			}
			if seen[id] {
				return false
			}
			seen[id] = true
			for _, f := range v {
				if walk(f) {
					return true
				}
			}
		case ir.IRArray:
			for _, e := range v {
				if walk(e) {
					return true
				}
			}
		}
		return false
	}
	return walk(from)
}

// properties copies the property values of entity e out of obj.
func properties(obj ir.IRObject, e *model.EntityType) ir.IRObject {
	out := make(ir.IRObject, len(e.Properties))
	for _, p := range e.Properties {
		if v, ok := obj[p.Name]; ok {
			out[p.Name] = v
		}
	}
	return out
}

// element extracts the query element from a shaped row.
func (m *materializer) element(row ir.IRValue) (ir.IRValue, error) {
	if len(m.res.ResultPath) == 0 {
		return row, nil
	}
	v := lookup(row, m.res.ResultPath)
	if v == nil {
		return nil, &ShapeError{Row: m.row, Column: strings.Join(m.res.ResultPath, "."), Message: "result element missing"}
	}
	return v, nil
}

// applyCollections fills in the projected collections of one element. A
// collection that is the whole element replaces it.
func (m *materializer) applyCollections(row ir.IRObject, elem ir.IRValue) (ir.IRValue, error) {
	for _, pc := range m.res.Collections {
		key, err := m.projectedKey(row, pc)
		if err != nil {
			return nil, err
		}
		items := m.collection(pc.Query, key)

		if len(pc.Path) == 0 {
			elem = items
			continue
		}
		parent, ok := lookup(elem, pc.Path[:len(pc.Path)-1]).(ir.IRObject)
		if !ok {
			return nil, &ShapeError{Row: m.row, Column: strings.Join(pc.Path, "."), Message: "collection owner missing"}
		}
		parent[pc.Path[len(pc.Path)-1]] = items
	}
	return elem, nil
}

// projectedKey reads the owner key of a projected collection. The row
// holds the owner key values at the collection's path.
func (m *materializer) projectedKey(row ir.IRObject, pc navigation.ProjectedCollection) (ir.IRObject, error) {
	key := make(ir.IRObject, len(pc.Query.OwnerKey))
	for _, k := range pc.Query.OwnerKey {
		col := queryir.ColumnName(append(slices.Clone(pc.Path), k))
		v, ok := row[col]
		if !ok {
			return nil, &ShapeError{Row: m.row, Column: col, Message: "missing from result"}
		}
		key[k] = v
	}
	return key, nil
}

// collection returns the loaded targets of q owned by the entity or key
// object owner.
func (m *materializer) collection(q *navigation.CollectionQuery, owner ir.IRObject) ir.IRArray {
	key, ok := keyOf(owner, q.OwnerKey)
	if !ok {
		return ir.IRArray{}
	}
	items := m.collections[q][key]
	if items == nil {
		return ir.IRArray{}
	}
	return slices.Clone(items)
}

// keyOf renders the values of names in obj as an identity key. A key with
// a null component identifies nothing.
func keyOf(obj ir.IRObject, names []string) (string, bool) {
	var b strings.Builder
	for i, n := range names {
		v := obj[n]
		if ir.IsNull(v) {
			return "", false
		}
		if i > 0 {
			b.WriteByte(0)
		}
		enc, err := ir.MarshalCanonical(v)
		if err != nil {
			return "", false
		}
		b.Write(enc)
	}
	return b.String(), true
}

func lookup(v ir.IRValue, path []string) ir.IRValue {
	for _, seg := range path {
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil
		}
		v = obj[seg]
	}
	return v
}

// coerce converts a driver value to the property kind.
func coerce(v ir.IRValue, kind model.ScalarKind) (ir.IRValue, error) {
	if v == nil {
		return ir.IRNull{}, nil
	}
	if kind != model.KindBool {
		return v, nil
	}
	switch b := v.(type) {
	case ir.IRInt:
		return ir.IRBool(b != 0), nil
	case ir.IRString:
		// MySQL and some SQLite builds hand back text for CASE results.
		switch b {
		case "1", "true":
			return ir.IRBool(true), nil
		case "0", "false":
			return ir.IRBool(false), nil
		}
		return nil, fmt.Errorf("cannot read %q as bool", string(b))
	}
	return v, nil
}
