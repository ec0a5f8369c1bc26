package filter

import (
	"slices"
	"strings"
)

// Merge applies d to prev and returns the new state together with the fields
// that actually changed. prev is never modified.
func Merge(prev State, d Directive) (State, ChangeSet) {
	next := prev.Clone()

	if d.ClearAll {
		next = Default()
	}
	if d.Remove != nil {
		next = applyRemoval(next, *d.Remove)
	}
	if d.Set != nil {
		next = applyPreferences(next, d.Set)
	}

	return next, Diff(prev, next)
}

func applyRemoval(s State, r Removal) State {
	switch r.Field {
	case FieldCuisine:
		s.Cuisine = nil
	case FieldPriceLevel:
		s.PriceLevel = nil
	case FieldMinRating:
		s.MinRating = nil
	case FieldRadius:
		s.RadiusMiles = DefaultRadiusMiles
	case FieldSortBy:
		s.SortBy = ""
	case FieldDietary:
		if r.Tag == "" {
			s.Dietary = nil
			break
		}
		tag := normalizeTag(r.Tag)
		s.Dietary = slices.DeleteFunc(slices.Clone(s.Dietary), func(t string) bool { return t == tag })
		if len(s.Dietary) == 0 {
			s.Dietary = nil
		}
	}
	return s
}

func applyPreferences(s State, p *Preferences) State {
	if p.Cuisine != nil {
		if c := strings.TrimSpace(*p.Cuisine); c != "" {
			s.Cuisine = &c
		} else {
			s.Cuisine = nil
		}
	}
	if p.PriceLevel != nil {
		v := *p.PriceLevel
		s.PriceLevel = &v
	}
	if p.MinRating != nil {
		v := *p.MinRating
		s.MinRating = &v
	}
	if p.RadiusMiles != nil {
		s.RadiusMiles = *p.RadiusMiles
	}
	if len(p.Dietary) > 0 {
		s.Dietary = normalizeTags(append(slices.Clone(s.Dietary), p.Dietary...))
	}
	if p.SortBy != nil {
		sb, _ := ParseSortBy(string(*p.SortBy))
		if sb == SortRelevance {
			sb = ""
		}
		s.SortBy = sb
	}
	return s
}

// Diff returns the fields whose values differ between a and b.
func Diff(a, b State) ChangeSet {
	var c ChangeSet
	if !equalString(a.Cuisine, b.Cuisine) {
		c = c.With(FieldCuisine)
	}
	if !equalPtr(a.PriceLevel, b.PriceLevel) {
		c = c.With(FieldPriceLevel)
	}
	if !equalPtr(a.MinRating, b.MinRating) {
		c = c.With(FieldMinRating)
	}
	if a.RadiusMiles != b.RadiusMiles {
		c = c.With(FieldRadius)
	}
	if !slices.Equal(normalizeTags(a.Dietary), normalizeTags(b.Dietary)) {
		c = c.With(FieldDietary)
	}
	if normalizeSort(a.SortBy) != normalizeSort(b.SortBy) {
		c = c.With(FieldSortBy)
	}
	return c
}

func normalizeSort(s SortBy) SortBy {
	if s == SortRelevance {
		return ""
	}
	return s
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return strings.EqualFold(*a, *b)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
