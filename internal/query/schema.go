// Package query implements the composable filter, ordering, pagination and
// projection inputs shared by every repository, and compiles them into
// parameterized SQL fragments.
package query

import "fmt"

// Kind classifies a column for operator validation.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindTime
	KindEnum
)

// Schema describes the scalar surface of one model: its table, the ordered
// column list, the kind of each column and the allowed values of enum
// columns. Filter, order, distinct, group-by and projection inputs are all
// validated against it.
type Schema struct {
	Table   string
	PK      string
	Columns []string
	Kinds   map[string]Kind
	Enums   map[string][]string
}

// Has reports whether col is a scalar column of the schema.
func (s *Schema) Has(col string) bool {
	_, ok := s.Kinds[col]
	return ok
}

// KindOf returns the kind of col. The second return is false for unknown
// columns.
func (s *Schema) KindOf(col string) (Kind, bool) {
	k, ok := s.Kinds[col]
	return k, ok
}

// index returns the bit position of col inside Columns, or -1.
func (s *Schema) index(col string) int {
	for i, c := range s.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// CheckColumns validates that every name is a scalar column.
func (s *Schema) CheckColumns(cols []string) error {
	for _, c := range cols {
		if !s.Has(c) {
			return &ValidationError{Field: c, Reason: fmt.Sprintf("unknown column for table %q", s.Table)}
		}
	}
	return nil
}

// enumAllows reports whether v is a declared value of the enum column col.
func (s *Schema) enumAllows(col string, v string) bool {
	for _, allowed := range s.Enums[col] {
		if v == allowed {
			return true
		}
	}
	return false
}

// ValidationError reports a malformed query construction: an unknown
// column, an operator applied to an incompatible kind, a bad enum value,
// or group-by misuse. It is detected before the database is reached.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid query: " + e.Reason
	}
	return fmt.Sprintf("invalid query: field %q: %s", e.Field, e.Reason)
}
