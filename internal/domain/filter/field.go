package filter

import (
	"fmt"
	"strings"
)

// Field identifies one FilterState field.
type Field uint8

// FilterState fields.
const (
	FieldCuisine Field = 1 << iota
	FieldPriceLevel
	FieldMinRating
	FieldRadius
	FieldDietary
	FieldSortBy
)

var allFields = []Field{
	FieldCuisine, FieldPriceLevel, FieldMinRating, FieldRadius, FieldDietary, FieldSortBy,
}

func (f Field) String() string {
	switch f {
	case FieldCuisine:
		return "cuisine"
	case FieldPriceLevel:
		return "price_level"
	case FieldMinRating:
		return "min_rating"
	case FieldRadius:
		return "radius"
	case FieldDietary:
		return "dietary"
	case FieldSortBy:
		return "sort_by"
	}
	return "unknown"
}

// ParseField maps a field name (and the aliases clients commonly send) to a Field.
func ParseField(s string) (Field, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cuisine":
		return FieldCuisine, true
	case "price_level", "price", "price_range", "max_price_level":
		return FieldPriceLevel, true
	case "min_rating", "rating":
		return FieldMinRating, true
	case "radius", "radius_miles", "distance":
		return FieldRadius, true
	case "dietary", "dietary_restrictions":
		return FieldDietary, true
	case "sort_by", "sort":
		return FieldSortBy, true
	}
	return 0, false
}

// ChangeSet is the set of fields that differ between two states.
type ChangeSet uint8

// Has reports whether f changed.
func (c ChangeSet) Has(f Field) bool { return uint8(c)&uint8(f) != 0 }

// With returns c with f added.
func (c ChangeSet) With(f Field) ChangeSet { return ChangeSet(uint8(c) | uint8(f)) }

// IsEmpty reports whether nothing changed.
func (c ChangeSet) IsEmpty() bool { return c == 0 }

// Fields lists the changed fields in declaration order.
func (c ChangeSet) Fields() []Field {
	var out []Field
	for _, f := range allFields {
		if c.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (c ChangeSet) String() string {
	if c.IsEmpty() {
		return "none"
	}
	names := make([]string, 0, len(allFields))
	for _, f := range c.Fields() {
		names = append(names, f.String())
	}
	return strings.Join(names, ",")
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(b []byte) error {
	v, ok := ParseField(string(b))
	if !ok {
		return fmt.Errorf("unknown filter field %q", string(b))
	}
	*f = v
	return nil
}
