// Package query describes what to read: a predicate tree, a sort order
// and a page window. It knows nothing about SQL; stores render it.
package query

// Op is a comparison operator.
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "<>"
	OpLt      Op = "<"
	OpLte     Op = "<="
	OpGt      Op = ">"
	OpGte     Op = ">="
	OpLike    Op = "LIKE"
	OpIn      Op = "IN"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

// Filter is a predicate over records. A nil Filter matches everything.
type Filter interface {
	isFilter()
}

// Cond compares a column with a value.
type Cond struct {
	Column string
	Op     Op
	Value  any
}

// And matches when every member matches. An empty And matches everything.
type And []Filter

// Or matches when any member matches. An empty Or matches nothing.
type Or []Filter

// Not negates its operand.
type Not struct {
	Filter Filter
}

func (Cond) isFilter() {}
func (And) isFilter()  {}
func (Or) isFilter()   {}
func (Not) isFilter()  {}

func Eq(column string, v any) Filter  { return Cond{Column: column, Op: OpEq, Value: v} }
func Ne(column string, v any) Filter  { return Cond{Column: column, Op: OpNe, Value: v} }
func Lt(column string, v any) Filter  { return Cond{Column: column, Op: OpLt, Value: v} }
func Lte(column string, v any) Filter { return Cond{Column: column, Op: OpLte, Value: v} }
func Gt(column string, v any) Filter  { return Cond{Column: column, Op: OpGt, Value: v} }
func Gte(column string, v any) Filter { return Cond{Column: column, Op: OpGte, Value: v} }

// Like matches with SQL LIKE semantics (% and _ wildcards).
func Like(column, pattern string) Filter {
	return Cond{Column: column, Op: OpLike, Value: pattern}
}

func IsNull(column string) Filter  { return Cond{Column: column, Op: OpIsNull} }
func NotNull(column string) Filter { return Cond{Column: column, Op: OpNotNull} }

// In matches when the column equals one of values. No values matches nothing.
func In[V any](column string, values ...V) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Cond{Column: column, Op: OpIn, Value: vs}
}

// All combines filters with AND, skipping nil ones. It returns nil when
// nothing is left and the single filter when only one is left.
func All(filters ...Filter) Filter {
	out := make(And, 0, len(filters))
	for _, f := range filters {
		if f == nil {
			continue
		}
		out = append(out, f)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// Any combines filters with OR, skipping nil ones.
func Any(filters ...Filter) Filter {
	out := make(Or, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func Negate(f Filter) Filter { return Not{Filter: f} }
