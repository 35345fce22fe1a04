package navigation

import (
	"github.com/roach88/navex/internal/expr"
	"github.com/roach88/navex/internal/model"
)

// Result is the output of one expansion.
type Result struct {
	// Expression contains only entity sets, joins, the operators listed in
	// the package documentation, member accesses over rows, scalar
	// operators and MaterializeCollection markers.
	Expression expr.Node

	// ResultPath locates the query element inside each result row. It is
	// empty unless includes keep the joined row around the element.
	ResultPath []string

	// Includes lists eager-load instructions in attach order: owners are
	// always attached before the navigations included below them.
	Includes []IncludeInstruction

	// Collections lists collection navigations projected by the query.
	Collections []ProjectedCollection

	// Joins is the number of navigation joins synthesised, sub-queries
	// included.
	Joins int

	CompilationID string
}

// IncludeInstruction tells the materialiser to attach the entity (or
// entities) of Navigation to the entity found at OwnerPath.
type IncludeInstruction struct {
	Navigation *model.Navigation

	// OwnerPath locates the owning entity in the result row.
	OwnerPath []string

	// TargetPath locates the included entity in the result row. Empty for
	// collection includes.
	TargetPath []string

	// Collection loads the included entities of a collection navigation.
	Collection *CollectionQuery
}

// CollectionQuery loads the targets of a collection navigation with a
// separate query. Rows are matched to owners by comparing TargetKey values
// of each target with OwnerKey values of the owner, component by
// component.
type CollectionQuery struct {
	Navigation *model.Navigation
	OwnerKey   []string
	TargetKey  []string
	Result     *Result
}

// ProjectedCollection is a collection navigation projected at Path inside
// the query element. The lowered row carries the owner key values at Path;
// the materialiser replaces them with the loaded collection.
type ProjectedCollection struct {
	Path  []string
	Query *CollectionQuery
}
