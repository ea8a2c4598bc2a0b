// Package query describes store lookups as composable options, independent
// of any particular database.
package query

import "fmt"

// Operator is the comparison a Condition applies.
type Operator int

// Supported operators.
const (
	OpEqual Operator = iota
	OpIn
	OpIsNull
	OpIsNotNull
)

// Option modifies a Query.
type Option func(Query) Query

// Query collects filters, ordering and paging for a store lookup.
type Query struct {
	conditions []Condition
	orders     []Order
	limit      int
	offset     int
}

// Build applies options in order to an empty Query.
func Build(options ...Option) Query {
	q := Query{}
	for _, opt := range options {
		if opt != nil {
			q = opt(q)
		}
	}
	return q
}

// Conditions returns a copy of the query conditions.
func (q Query) Conditions() []Condition {
	out := make([]Condition, len(q.conditions))
	copy(out, q.conditions)
	return out
}

// Orders returns a copy of the ordering specifications.
func (q Query) Orders() []Order {
	out := make([]Order, len(q.orders))
	copy(out, q.orders)
	return out
}

// Limit returns the row limit; zero means unlimited.
func (q Query) Limit() int { return q.limit }

// Offset returns the number of rows to skip.
func (q Query) Offset() int { return q.offset }

// Condition is a single filter on a column.
type Condition struct {
	field string
	op    Operator
	value any
}

// Field returns the column name.
func (c Condition) Field() string { return c.field }

// Operator returns the comparison.
func (c Condition) Operator() Operator { return c.op }

// Value returns the comparison operand. It is nil for null checks.
func (c Condition) Value() any { return c.value }

// String renders the condition for logs and test failures.
func (c Condition) String() string {
	switch c.op {
	case OpIn:
		return fmt.Sprintf("%s IN %v", c.field, c.value)
	case OpIsNull:
		return c.field + " IS NULL"
	case OpIsNotNull:
		return c.field + " IS NOT NULL"
	default:
		return fmt.Sprintf("%s = %v", c.field, c.value)
	}
}

// Order is a sort on one column.
type Order struct {
	field     string
	ascending bool
}

// Field returns the column name.
func (o Order) Field() string { return o.field }

// Ascending reports whether the sort is ascending.
func (o Order) Ascending() bool { return o.ascending }

func withCondition(c Condition) Option {
	return func(q Query) Query {
		q.conditions = append(q.conditions, c)
		return q
	}
}

// Where filters on field = value.
func Where(field string, value any) Option {
	return withCondition(Condition{field: field, op: OpEqual, value: value})
}

// WhereIn filters on field IN (values). values should be a slice.
func WhereIn(field string, values any) Option {
	return withCondition(Condition{field: field, op: OpIn, value: values})
}

// WhereNull filters on field IS NULL.
func WhereNull(field string) Option {
	return withCondition(Condition{field: field, op: OpIsNull})
}

// WhereNotNull filters on field IS NOT NULL.
func WhereNotNull(field string) Option {
	return withCondition(Condition{field: field, op: OpIsNotNull})
}

// WithLimit caps the number of rows returned.
func WithLimit(n int) Option {
	return func(q Query) Query {
		q.limit = n
		return q
	}
}

// WithOffset skips the first n rows.
func WithOffset(n int) Option {
	return func(q Query) Query {
		q.offset = n
		return q
	}
}

// OrderAsc sorts ascending on field.
func OrderAsc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field, ascending: true})
		return q
	}
}

// OrderDesc sorts descending on field.
func OrderDesc(field string) Option {
	return func(q Query) Query {
		q.orders = append(q.orders, Order{field: field})
		return q
	}
}

// Page returns the options for a one-based page of the given size.
// Non-positive values fall back to page 1 and no limit respectively.
func Page(page, perPage int) []Option {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return nil
	}
	return []Option{WithLimit(perPage), WithOffset((page - 1) * perPage)}
}
