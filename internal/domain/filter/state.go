package filter

import (
	"slices"
	"strings"
)

// Radius bounds in miles.
const (
	DefaultRadiusMiles = 5.0
	MinRadiusMiles     = 1.0
	MaxRadiusMiles     = 25.0
)

// SortBy selects an explicit ordering. The zero value means relevance.
type SortBy string

// Supported sort keys.
const (
	SortRelevance SortBy = "relevance"
	SortRating    SortBy = "rating"
	SortDistance  SortBy = "distance"
	SortPrice     SortBy = "price"
)

// ParseSortBy parses a sort key. "price_low" is accepted as an alias for price.
func ParseSortBy(s string) (SortBy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relevance":
		return SortRelevance, true
	case "rating":
		return SortRating, true
	case "distance":
		return SortDistance, true
	case "price", "price_low":
		return SortPrice, true
	}
	return "", false
}

// Explicit reports whether s orders by a single field instead of relevance.
func (s SortBy) Explicit() bool {
	return s != "" && s != SortRelevance
}

// State is the effective set of filters for a conversation.
// Values are never mutated in place; Merge returns a new State.
type State struct {
	Cuisine     *string  `json:"cuisine,omitempty"`
	PriceLevel  *int     `json:"price_level,omitempty"`
	MinRating   *float64 `json:"min_rating,omitempty"`
	RadiusMiles float64  `json:"radius_miles"`
	Dietary     []string `json:"dietary,omitempty"`
	SortBy      SortBy   `json:"sort_by,omitempty"`
}

// Default returns the empty filter state with the default radius.
func Default() State {
	return State{RadiusMiles: DefaultRadiusMiles}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Cuisine != nil {
		v := *s.Cuisine
		out.Cuisine = &v
	}
	if s.PriceLevel != nil {
		v := *s.PriceLevel
		out.PriceLevel = &v
	}
	if s.MinRating != nil {
		v := *s.MinRating
		out.MinRating = &v
	}
	if s.Dietary != nil {
		out.Dietary = slices.Clone(s.Dietary)
	}
	if out.RadiusMiles <= 0 {
		out.RadiusMiles = DefaultRadiusMiles
	}
	return out
}

// HasDietary reports whether tag is requested.
func (s State) HasDietary(tag string) bool {
	return slices.Contains(s.Dietary, normalizeTag(tag))
}

// ActiveCount returns the number of narrowing filters in effect (cuisine, price, rating, dietary).
func (s State) ActiveCount() int {
	n := 0
	if s.Cuisine != nil {
		n++
	}
	if s.PriceLevel != nil {
		n++
	}
	if s.MinRating != nil {
		n++
	}
	if len(s.Dietary) > 0 {
		n++
	}
	return n
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// normalizeTags lowercases, trims, deduplicates and sorts tags.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = normalizeTag(t); t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
