package expr

// Operator names a query operator applied by a Call.
type Operator string

const (
	OpWhere             Operator = "Where"
	OpSelect            Operator = "Select"
	OpOrderBy           Operator = "OrderBy"
	OpOrderByDescending Operator = "OrderByDescending"
	OpThenBy            Operator = "ThenBy"
	OpThenByDescending  Operator = "ThenByDescending"
	OpInclude           Operator = "Include"
	OpThenInclude       Operator = "ThenInclude"
	OpJoin              Operator = "Join"
	OpLeftJoin          Operator = "LeftJoin"
	OpSkip              Operator = "Skip"
	OpTake              Operator = "Take"
	OpDistinct          Operator = "Distinct"
	OpDefaultIfEmpty    Operator = "DefaultIfEmpty"
	OpSelectMany        Operator = "SelectMany"
	OpUnion             Operator = "Union"
	OpConcat            Operator = "Concat"
	OpIntersect         Operator = "Intersect"
	OpExcept            Operator = "Except"
	OpFirst             Operator = "First"
	OpFirstOrDefault    Operator = "FirstOrDefault"
	OpSingle            Operator = "Single"
	OpSingleOrDefault   Operator = "SingleOrDefault"
	OpAny               Operator = "Any"
	OpAll               Operator = "All"
	OpCount             Operator = "Count"
	OpLongCount         Operator = "LongCount"
	OpSum               Operator = "Sum"
	OpMin               Operator = "Min"
	OpMax               Operator = "Max"
)

// IsOrdering reports whether op sorts its source.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpOrderBy, OpOrderByDescending, OpThenBy, OpThenByDescending:
		return true
	default:
		return false
	}
}

// IsThenBy reports whether op refines an existing ordering.
func (op Operator) IsThenBy() bool {
	return op == OpThenBy || op == OpThenByDescending
}

// IsDescending reports whether op sorts in descending order.
func (op Operator) IsDescending() bool {
	return op == OpOrderByDescending || op == OpThenByDescending
}

// IsCardinalityReducer reports whether op reduces a sequence to at most one
// element.
func (op Operator) IsCardinalityReducer() bool {
	switch op {
	case OpFirst, OpFirstOrDefault, OpSingle, OpSingleOrDefault:
		return true
	default:
		return false
	}
}

// IsAggregate reports whether op reduces a sequence to a scalar.
func (op Operator) IsAggregate() bool {
	switch op {
	case OpAny, OpAll, OpCount, OpLongCount, OpSum, OpMin, OpMax:
		return true
	default:
		return false
	}
}

// IsValueAggregate reports whether op folds the values of a scalar
// sequence. A lambda argument selects the values.
func (op Operator) IsValueAggregate() bool {
	return op == OpSum || op == OpMin || op == OpMax
}

// IsSetOperation reports whether op combines two sequences.
func (op Operator) IsSetOperation() bool {
	switch op {
	case OpUnion, OpConcat, OpIntersect, OpExcept:
		return true
	default:
		return false
	}
}

// IsJoin reports whether op is a join.
func (op Operator) IsJoin() bool {
	return op == OpJoin || op == OpLeftJoin
}

func callType(op Operator, args []Node) *Type {
	if len(args) == 0 {
		return nil
	}
	src := args[0].Type()
	switch op {
	case OpSelect:
		if len(args) > 1 {
			return SequenceOf(args[1].Type())
		}
	case OpJoin, OpLeftJoin:
		if len(args) > 4 {
			return SequenceOf(args[4].Type())
		}
	case OpFirst, OpSingle:
		return src.ElementType()
	case OpFirstOrDefault, OpSingleOrDefault:
		return src.ElementType().AsNullable()
	case OpAny, OpAll:
		return BoolType
	case OpCount, OpLongCount, OpSum:
		return IntType
	case OpMin, OpMax:
		if len(args) > 1 {
			return args[1].Type()
		}
		return src.ElementType()
	case OpSelectMany:
		if len(args) > 1 {
			return SequenceOf(args[1].Type().ElementType())
		}
	case OpDefaultIfEmpty:
		return SequenceOf(src.ElementType().AsNullable())
	}
	return src
}
