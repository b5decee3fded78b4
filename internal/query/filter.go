package query

import (
	"fmt"
	"strings"
	"time"
)

// Op is a leaf comparison operator.
type Op int

const (
	opNone Op = iota // composite node
	OpEq
	OpNeq
	OpIn
	OpNotIn
	OpLt
	OpLte
	OpGt
	OpGte
	OpContains
	OpHasPrefix
	OpHasSuffix
	OpIsNull
	OpNotNull
)

// Filter is a composable predicate tree. The zero value matches everything.
// Leaves are built with the constructors below and combined with And, Or
// and Not to arbitrary depth.
type Filter struct {
	op     Op
	field  string
	value  any
	values []any
	fold   bool // case-insensitive string comparison

	and []Filter
	or  []Filter
	not *Filter
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.op == opNone && len(f.and) == 0 && len(f.or) == 0 && f.not == nil
}

func leaf(op Op, field string, v any) Filter {
	return Filter{op: op, field: field, value: v}
}

// Eq matches rows whose field equals v.
func Eq(field string, v any) Filter { return leaf(OpEq, field, v) }

// EqFold is a case-insensitive Eq for string fields.
func EqFold(field string, v string) Filter {
	f := leaf(OpEq, field, v)
	f.fold = true
	return f
}

// Neq matches rows whose field does not equal v.
func Neq(field string, v any) Filter { return leaf(OpNeq, field, v) }

// In matches rows whose field is one of vs. An empty list matches nothing.
func In(field string, vs ...any) Filter {
	return Filter{op: OpIn, field: field, values: vs}
}

// NotIn matches rows whose field is none of vs.
func NotIn(field string, vs ...any) Filter {
	return Filter{op: OpNotIn, field: field, values: vs}
}

// Lt matches rows whose field is less than v.
func Lt(field string, v any) Filter { return leaf(OpLt, field, v) }

// Lte matches rows whose field is less than or equal to v.
func Lte(field string, v any) Filter { return leaf(OpLte, field, v) }

// Gt matches rows whose field is greater than v.
func Gt(field string, v any) Filter { return leaf(OpGt, field, v) }

// Gte matches rows whose field is greater than or equal to v.
func Gte(field string, v any) Filter { return leaf(OpGte, field, v) }

// Contains matches string fields containing the substring v.
func Contains(field string, v string) Filter { return leaf(OpContains, field, v) }

// ContainsFold is a case-insensitive Contains.
func ContainsFold(field string, v string) Filter {
	f := leaf(OpContains, field, v)
	f.fold = true
	return f
}

// HasPrefix matches string fields starting with v.
func HasPrefix(field string, v string) Filter { return leaf(OpHasPrefix, field, v) }

// HasPrefixFold is a case-insensitive HasPrefix.
func HasPrefixFold(field string, v string) Filter {
	f := leaf(OpHasPrefix, field, v)
	f.fold = true
	return f
}

// HasSuffix matches string fields ending with v.
func HasSuffix(field string, v string) Filter { return leaf(OpHasSuffix, field, v) }

// HasSuffixFold is a case-insensitive HasSuffix.
func HasSuffixFold(field string, v string) Filter {
	f := leaf(OpHasSuffix, field, v)
	f.fold = true
	return f
}

// IsNull matches rows whose nullable field is NULL.
func IsNull(field string) Filter { return leaf(OpIsNull, field, nil) }

// NotNull matches rows whose nullable field is not NULL.
func NotNull(field string) Filter { return leaf(OpNotNull, field, nil) }

// And combines filters conjunctively. Zero-value filters are dropped.
func And(fs ...Filter) Filter {
	kept := keep(fs)
	switch len(kept) {
	case 0:
		return Filter{}
	case 1:
		return kept[0]
	}
	return Filter{and: kept}
}

// Or combines filters disjunctively. Zero-value filters are dropped.
func Or(fs ...Filter) Filter {
	kept := keep(fs)
	switch len(kept) {
	case 0:
		return Filter{}
	case 1:
		return kept[0]
	}
	return Filter{or: kept}
}

// Not negates a filter. Negating a zero-value filter matches nothing.
func Not(f Filter) Filter {
	return Filter{not: &f}
}

func keep(fs []Filter) []Filter {
	kept := make([]Filter, 0, len(fs))
	for _, f := range fs {
		if !f.IsZero() {
			kept = append(kept, f)
		}
	}
	return kept
}

// Fields lists every column the filter references, depth first. Useful
// for validating a filter against an allowed column set.
func (f Filter) Fields() []string {
	var out []string
	f.collectFields(&out)
	return out
}

func (f Filter) collectFields(out *[]string) {
	switch {
	case len(f.and) > 0:
		for _, sub := range f.and {
			sub.collectFields(out)
		}
	case len(f.or) > 0:
		for _, sub := range f.or {
			sub.collectFields(out)
		}
	case f.not != nil:
		f.not.collectFields(out)
	case f.op != opNone:
		*out = append(*out, f.field)
	}
}

// Compile renders the filter into a parameterized SQL condition and its
// arguments, validating every referenced column against the schema. A
// zero-value filter compiles to an empty condition.
func (f Filter) Compile(s *Schema) (string, []any, error) {
	if f.IsZero() {
		return "", nil, nil
	}
	var sb strings.Builder
	var args []any
	if err := f.compile(s, &sb, &args); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func (f Filter) compile(s *Schema, sb *strings.Builder, args *[]any) error {
	switch {
	case len(f.and) > 0:
		return compileGroup(s, sb, args, f.and, " AND ")
	case len(f.or) > 0:
		return compileGroup(s, sb, args, f.or, " OR ")
	case f.not != nil:
		if f.not.IsZero() {
			// NOT over the match-all filter matches nothing.
			sb.WriteString("FALSE")
			return nil
		}
		sb.WriteString("NOT (")
		if err := f.not.compile(s, sb, args); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	default:
		return f.compileLeaf(s, sb, args)
	}
}

func compileGroup(s *Schema, sb *strings.Builder, args *[]any, fs []Filter, sep string) error {
	sb.WriteString("(")
	for i, sub := range fs {
		if i > 0 {
			sb.WriteString(sep)
		}
		if err := sub.compile(s, sb, args); err != nil {
			return err
		}
	}
	sb.WriteString(")")
	return nil
}

func (f Filter) compileLeaf(s *Schema, sb *strings.Builder, args *[]any) error {
	kind, ok := s.KindOf(f.field)
	if !ok {
		return &ValidationError{Field: f.field, Reason: fmt.Sprintf("unknown column for table %q", s.Table)}
	}
	if err := f.checkLeaf(s, kind); err != nil {
		return err
	}

	col := f.field
	switch f.op {
	case OpEq, OpNeq:
		cmp := "="
		if f.op == OpNeq {
			cmp = "<>"
		}
		if f.fold {
			fmt.Fprintf(sb, "LOWER(%s) %s LOWER(?)", col, cmp)
		} else {
			fmt.Fprintf(sb, "%s %s ?", col, cmp)
		}
		*args = append(*args, f.value)
	case OpIn, OpNotIn:
		if len(f.values) == 0 {
			// Membership in the empty set: IN matches nothing,
			// NOT IN matches everything.
			if f.op == OpIn {
				sb.WriteString("FALSE")
			} else {
				sb.WriteString("TRUE")
			}
			return nil
		}
		if f.op == OpIn {
			fmt.Fprintf(sb, "%s IN ?", col)
		} else {
			fmt.Fprintf(sb, "%s NOT IN ?", col)
		}
		*args = append(*args, f.values)
	case OpLt, OpLte, OpGt, OpGte:
		cmp := map[Op]string{OpLt: "<", OpLte: "<=", OpGt: ">", OpGte: ">="}[f.op]
		fmt.Fprintf(sb, "%s %s ?", col, cmp)
		*args = append(*args, f.value)
	case OpContains, OpHasPrefix, OpHasSuffix:
		pattern := escapeLike(f.value.(string))
		switch f.op {
		case OpContains:
			pattern = "%" + pattern + "%"
		case OpHasPrefix:
			pattern = pattern + "%"
		case OpHasSuffix:
			pattern = "%" + pattern
		}
		like := "LIKE"
		if f.fold {
			like = "ILIKE"
		}
		fmt.Fprintf(sb, `%s %s ? ESCAPE '\'`, col, like)
		*args = append(*args, pattern)
	case OpIsNull:
		fmt.Fprintf(sb, "%s IS NULL", col)
	case OpNotNull:
		fmt.Fprintf(sb, "%s IS NOT NULL", col)
	default:
		return &ValidationError{Field: f.field, Reason: "unsupported operator"}
	}
	return nil
}

// checkLeaf validates the operator and operand against the column kind.
func (f Filter) checkLeaf(s *Schema, kind Kind) error {
	if f.op == OpIsNull || f.op == OpNotNull {
		return nil
	}

	switch kind {
	case KindString:
		// Every operator applies.
	case KindInt:
		if f.op == OpContains || f.op == OpHasPrefix || f.op == OpHasSuffix {
			return &ValidationError{Field: f.field, Reason: "substring match on non-string column"}
		}
	case KindBool:
		if f.op != OpEq && f.op != OpNeq {
			return &ValidationError{Field: f.field, Reason: "boolean columns support only equality"}
		}
	case KindTime:
		switch f.op {
		case OpEq, OpLt, OpLte, OpGt, OpGte:
		default:
			return &ValidationError{Field: f.field, Reason: "time columns support only equality and range"}
		}
	case KindEnum:
		switch f.op {
		case OpEq, OpNeq, OpIn, OpNotIn:
		default:
			return &ValidationError{Field: f.field, Reason: "enum columns support only equality and set membership"}
		}
		for _, v := range f.enumOperands() {
			if !s.enumAllows(f.field, enumString(v)) {
				return &ValidationError{Field: f.field, Reason: fmt.Sprintf("value %v is not part of the enum", v)}
			}
		}
	}

	if f.fold && kind != KindString {
		return &ValidationError{Field: f.field, Reason: "case-insensitive mode on non-string column"}
	}

	switch f.op {
	case OpContains, OpHasPrefix, OpHasSuffix:
		if _, ok := f.value.(string); !ok {
			return &ValidationError{Field: f.field, Reason: "substring match requires a string operand"}
		}
	}
	if kind == KindTime {
		if _, ok := f.value.(time.Time); f.op != OpIn && f.op != OpNotIn && !ok {
			return &ValidationError{Field: f.field, Reason: "time comparison requires a time.Time operand"}
		}
	}
	return nil
}

func (f Filter) enumOperands() []any {
	if f.op == OpIn || f.op == OpNotIn {
		return f.values
	}
	return []any{f.value}
}

func enumString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}
