package query

import (
	"github.com/bits-and-blooms/bitset"
)

// Projection is a column mask over a schema: which scalar columns a read
// returns. Built with Select (keep only these) or Omit (drop these) and
// intersected when stacked, so a configured global omission always wins.
type Projection struct {
	schema *Schema
	mask   *bitset.BitSet
}

// Select builds a projection keeping only the named columns.
func (s *Schema) Select(cols ...string) (Projection, error) {
	if err := s.CheckColumns(cols); err != nil {
		return Projection{}, err
	}
	mask := bitset.New(uint(len(s.Columns)))
	for _, c := range cols {
		mask.Set(uint(s.index(c)))
	}
	return Projection{schema: s, mask: mask}, nil
}

// Omit builds a projection dropping the named columns. The primary key is
// never dropped; rows must stay addressable.
func (s *Schema) Omit(cols ...string) (Projection, error) {
	if err := s.CheckColumns(cols); err != nil {
		return Projection{}, err
	}
	mask := bitset.New(uint(len(s.Columns)))
	mask.FlipRange(0, uint(len(s.Columns)))
	for _, c := range cols {
		mask.Clear(uint(s.index(c)))
	}
	mask.Set(uint(s.index(s.PK)))
	return Projection{schema: s, mask: mask}, nil
}

// IsZero reports whether the projection keeps every column.
func (p Projection) IsZero() bool {
	return p.mask == nil || p.mask.All()
}

// Intersect combines two projections; a column survives only if both keep
// it. The primary key is re-added to keep rows addressable.
func (p Projection) Intersect(other Projection) Projection {
	if p.mask == nil {
		return other
	}
	if other.mask == nil {
		return p
	}
	mask := p.mask.Intersection(other.mask)
	mask.Set(uint(p.schema.index(p.schema.PK)))
	return Projection{schema: p.schema, mask: mask}
}

// Columns lists the kept columns in schema order.
func (p Projection) Columns() []string {
	if p.mask == nil {
		return nil
	}
	cols := make([]string, 0, p.mask.Count())
	for i, c := range p.schema.Columns {
		if p.mask.Test(uint(i)) {
			cols = append(cols, c)
		}
	}
	return cols
}
