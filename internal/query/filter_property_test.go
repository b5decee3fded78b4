package query

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildTree combines leaves into a nested predicate; shape picks the
// combinator at each level.
func buildTree(leaves []Filter, shape int) Filter {
	if len(leaves) == 0 {
		return Filter{}
	}
	if len(leaves) == 1 {
		return leaves[0]
	}
	mid := len(leaves) / 2
	left := buildTree(leaves[:mid], shape/3)
	right := buildTree(leaves[mid:], shape/7)
	switch shape % 3 {
	case 0:
		return And(left, right)
	case 1:
		return Or(left, right)
	default:
		return And(left, Not(right))
	}
}

func randomLeaf(op int, value string) Filter {
	switch op % 8 {
	case 0:
		return Eq("name", value)
	case 1:
		return Neq("category", value)
	case 2:
		return In("category", value, value+"x")
	case 3:
		return Contains("name", value)
	case 4:
		return HasPrefixFold("name", value)
	case 5:
		return Gte("name", value)
	case 6:
		return IsNull("category")
	default:
		return Eq("is_private", op%2 == 0)
	}
}

func TestProperty_FilterPlaceholdersMatchArgs(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every placeholder has exactly one argument", prop.ForAll(
		func(ops []int, values []string, shape int) bool {
			n := min(len(ops), len(values))
			if n == 0 {
				return true
			}
			leaves := make([]Filter, 0, n)
			for i := range n {
				leaves = append(leaves, randomLeaf(ops[i], values[i]))
			}
			sql, args, err := buildTree(leaves, shape).Compile(stringSchema)
			if err != nil {
				return false
			}
			return strings.Count(sql, "?") == len(args)
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_FilterParensBalanced(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("compiled condition has balanced parentheses", prop.ForAll(
		func(ops []int, values []string, shape int) bool {
			n := min(len(ops), len(values))
			leaves := make([]Filter, 0, n)
			for i := range n {
				leaves = append(leaves, randomLeaf(ops[i], values[i]))
			}
			sql, _, err := buildTree(leaves, shape).Compile(stringSchema)
			if err != nil {
				return false
			}
			depth := 0
			for _, c := range sql {
				switch c {
				case '(':
					depth++
				case ')':
					depth--
				}
				if depth < 0 {
					return false
				}
			}
			return depth == 0
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 1<<20),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_EscapedPatternsNeverLeakWildcards(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("substring operands match themselves literally", prop.ForAll(
		func(value string) bool {
			_, args, err := Contains("name", value).Compile(stringSchema)
			if err != nil || len(args) != 1 {
				return false
			}
			pattern, ok := args[0].(string)
			if !ok {
				return false
			}
			// Strip the added anchors, then every % and _ left over
			// must carry the escape prefix.
			inner := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
			for i, c := range inner {
				if (c == '%' || c == '_') && (i == 0 || inner[i-1] != '\\') {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
