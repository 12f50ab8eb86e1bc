package query

// Operator is a binary comparison operator.
type Operator string

const (
	OpEq    Operator = "="
	OpNotEq Operator = "<>"
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpLike  Operator = "LIKE"
)

// Condition is a filter predicate. The set of conditions is closed: Compare,
// InList, IsNull, And, Or and Not.
type Condition interface {
	condition()
}

// Compare compares a column with a bound value. Values implementing
// Arg() any, such as values.Value and values.Identifier, are bound through it.
type Compare struct {
	Column string
	Op     Operator
	Value  any
}

// InList matches rows whose column is one of Values. An empty list matches
// nothing, or everything when negated.
type InList struct {
	Column  string
	Values  []any
	Negated bool
}

// IsNull matches rows whose column is NULL, or not NULL when negated.
type IsNull struct {
	Column  string
	Negated bool
}

// And matches when every condition matches. An empty And matches everything.
type And []Condition

// Or matches when any condition matches. An empty Or matches nothing.
type Or []Condition

// Not negates a condition.
type Not struct {
	Cond Condition
}

func (Compare) condition() {}
func (InList) condition()  {}
func (IsNull) condition()  {}
func (And) condition()     {}
func (Or) condition()      {}
func (Not) condition()     {}

func Eq(column string, v any) Condition    { return Compare{Column: column, Op: OpEq, Value: v} }
func NotEq(column string, v any) Condition { return Compare{Column: column, Op: OpNotEq, Value: v} }
func Lt(column string, v any) Condition    { return Compare{Column: column, Op: OpLt, Value: v} }
func Lte(column string, v any) Condition   { return Compare{Column: column, Op: OpLte, Value: v} }
func Gt(column string, v any) Condition    { return Compare{Column: column, Op: OpGt, Value: v} }
func Gte(column string, v any) Condition   { return Compare{Column: column, Op: OpGte, Value: v} }
func Like(column string, v any) Condition  { return Compare{Column: column, Op: OpLike, Value: v} }

// In matches rows whose column equals one of vals.
func In[T any](column string, vals []T) Condition {
	return InList{Column: column, Values: toAny(vals)}
}

// NotIn matches rows whose column equals none of vals.
func NotIn[T any](column string, vals []T) Condition {
	return InList{Column: column, Values: toAny(vals), Negated: true}
}

func Null(column string) Condition    { return IsNull{Column: column} }
func NotNull(column string) Condition { return IsNull{Column: column, Negated: true} }

// All combines conditions with AND, skipping nil ones.
func All(conds ...Condition) Condition {
	return And(compact(conds))
}

// Any combines conditions with OR, skipping nil ones.
func Any(conds ...Condition) Condition {
	return Or(compact(conds))
}

// Negate wraps c in Not.
func Negate(c Condition) Condition {
	return Not{Cond: c}
}

func compact(conds []Condition) []Condition {
	out := make([]Condition, 0, len(conds))
	for _, c := range conds {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func toAny[T any](vals []T) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
