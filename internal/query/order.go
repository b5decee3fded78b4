package query

import (
	"strings"
)

// Order sorts on a single column. Combine several for tie-breaking.
type Order struct {
	Field string
	Desc  bool
}

// Asc returns an ascending order on field.
func Asc(field string) Order { return Order{Field: field} }

// Desc returns a descending order on field.
func Desc(field string) Order { return Order{Field: field, Desc: true} }

func (o Order) clause() string {
	if o.Desc {
		return o.Field + " DESC"
	}
	return o.Field + " ASC"
}

// CompileOrder renders an ORDER BY clause body, validating every column
// against the schema. An empty order list compiles to an empty string.
func CompileOrder(s *Schema, orders []Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		if !s.Has(o.Field) {
			return "", &ValidationError{Field: o.Field, Reason: "unknown order column for table " + s.Table}
		}
		parts = append(parts, o.clause())
	}
	return strings.Join(parts, ", "), nil
}
