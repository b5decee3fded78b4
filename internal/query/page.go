package query

import (
	"fmt"
	"strconv"
)

// DefaultLimit applies when a parsed page does not name one.
const DefaultLimit = 20

// MaxLimit caps any parsed page size.
const MaxLimit = 100

// Page bounds a result set. Limit 0 means unbounded. After carries an
// opaque keyset cursor; when set, the query must be ordered on exactly one
// column so the cursor position is well defined.
type Page struct {
	Limit  int
	Offset int
	After  string
}

// ParsePage builds a Page from the string form used at API edges, applying
// the default and maximum limits.
func ParsePage(pageLimit string, cursor string) (Page, error) {
	limit := DefaultLimit

	if pageLimit != "" {
		var err error
		limit, err = strconv.Atoi(pageLimit)
		if err != nil {
			return Page{}, fmt.Errorf("page limit conversion: %w", err)
		}
	}

	if limit <= 0 {
		return Page{}, &ValidationError{Reason: "page limit must be larger than 0"}
	}
	if limit > MaxLimit {
		return Page{}, &ValidationError{Reason: fmt.Sprintf("page limit must be at most %d", MaxLimit)}
	}

	return Page{Limit: limit, After: cursor}, nil
}

// KeysetCondition renders the WHERE fragment that resumes an ordered scan
// after the cursor position. Requires exactly one order column.
func KeysetCondition(s *Schema, orders []Order, c *Cursor) (string, []any, error) {
	if c == nil {
		return "", nil, nil
	}
	if len(orders) != 1 {
		return "", nil, &ValidationError{Reason: "cursor pagination requires exactly one order column"}
	}
	o := orders[0]
	if !s.Has(o.Field) {
		return "", nil, &ValidationError{Field: o.Field, Reason: "unknown order column for table " + s.Table}
	}

	cmp := ">"
	if o.Desc {
		cmp = "<"
	}
	if o.Field == s.PK {
		return fmt.Sprintf("%s %s ?", s.PK, cmp), []any{c.PK}, nil
	}

	// SQL row comparison treats NULL order values as unknown, so a plain
	// (col, pk) > (?, ?) drops every NULL row and cannot resume from one.
	// Postgres sorts NULLS LAST ascending and NULLS FIRST descending; the
	// resume condition has to account for both the NULL block's position
	// and a boundary inside it.
	if c.OrderValue == nil {
		if o.Desc {
			// Still inside the leading NULL block; everything non-NULL
			// follows it.
			cond := fmt.Sprintf("((%s IS NULL AND %s %s ?) OR %s IS NOT NULL)", o.Field, s.PK, cmp, o.Field)
			return cond, []any{c.PK}, nil
		}
		// Inside the trailing NULL block; nothing follows it.
		cond := fmt.Sprintf("(%s IS NULL AND %s %s ?)", o.Field, s.PK, cmp)
		return cond, []any{c.PK}, nil
	}
	if o.Desc {
		// NULL rows were already emitted ahead of any non-NULL boundary.
		cond := fmt.Sprintf("(%s, %s) %s (?, ?)", o.Field, s.PK, cmp)
		return cond, []any{c.OrderValue, c.PK}, nil
	}
	// NULL rows still follow the non-NULL boundary.
	cond := fmt.Sprintf("((%s, %s) %s (?, ?) OR %s IS NULL)", o.Field, s.PK, cmp, o.Field)
	return cond, []any{c.OrderValue, c.PK}, nil
}

// PageInfo describes the position after a page fetch. Every paged slice
// query returns one.
type PageInfo struct {
	Limit      int    `json:"limit,omitempty"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore,omitempty"`
}
