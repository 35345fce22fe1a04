package queryir

import (
	"github.com/roach88/navex/internal/ir"
)

// KeyFilter keeps the rows of q whose key columns match one of keys. Each
// key holds one value per column, in column order. A single column is
// tested with IN; a composite key becomes a disjunction of equalities.
//
// Semantics:
//
//	SELECT * FROM (<q>) AS alias WHERE alias.c IN (k1, k2, ...)
func KeyFilter(q Query, alias string, columns []string, keys []ir.IRArray) *Filter {
	var pred Scalar
	if len(columns) == 1 {
		values := make([]Scalar, len(keys))
		for i, k := range keys {
			values[i] = &Literal{Value: k[0]}
		}
		pred = &In{Operand: &Column{Alias: alias, Name: columns[0]}, Values: values}
	} else {
		alts := make([]Scalar, len(keys))
		for i, k := range keys {
			eqs := make([]Scalar, len(columns))
			for j, col := range columns {
				eqs[j] = &Compare{Op: Eq, Left: &Column{Alias: alias, Name: col}, Right: &Literal{Value: k[j]}}
			}
			alts[i] = AndAll(eqs...)
		}
		pred = OrAll(alts...)
	}
	return &Filter{Source: q, Alias: alias, Predicate: pred}
}
