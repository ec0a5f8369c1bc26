package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/venuefinder/internal/domain"
)

// Preferences carries the fields a turn explicitly sets. Nil fields are absent.
// Dietary tags are additions to the existing set.
type Preferences struct {
	Cuisine     *string  `json:"cuisine,omitempty"`
	PriceLevel  *int     `json:"price_level,omitempty"`
	MinRating   *float64 `json:"min_rating,omitempty"`
	RadiusMiles *float64 `json:"radius_miles,omitempty"`
	Dietary     []string `json:"dietary,omitempty"`
	SortBy      *SortBy  `json:"sort_by,omitempty"`
}

// IsEmpty reports whether no field is present.
func (p *Preferences) IsEmpty() bool {
	return p == nil || (p.Cuisine == nil && p.PriceLevel == nil && p.MinRating == nil &&
		p.RadiusMiles == nil && len(p.Dietary) == 0 && p.SortBy == nil)
}

// Clone returns a deep copy. A nil receiver clones to nil.
func (p *Preferences) Clone() *Preferences {
	if p == nil {
		return nil
	}
	out := *p
	out.Dietary = slices.Clone(p.Dietary)
	return &out
}

// Remember folds the standing parts of d (cuisine, price level and dietary
// tags) into p. A removal forgets the field; ClearAll does not, because it
// resets the active filters only.
func Remember(p Preferences, d Directive) Preferences {
	out := *p.Clone()
	if r := d.Remove; r != nil {
		switch r.Field {
		case FieldCuisine:
			out.Cuisine = nil
		case FieldPriceLevel:
			out.PriceLevel = nil
		case FieldDietary:
			if r.Tag == "" {
				out.Dietary = nil
				break
			}
			tag := normalizeTag(r.Tag)
			out.Dietary = slices.DeleteFunc(out.Dietary, func(t string) bool { return t == tag })
			if len(out.Dietary) == 0 {
				out.Dietary = nil
			}
		}
	}
	if set := d.Set; set != nil {
		if set.Cuisine != nil {
			if c := strings.TrimSpace(*set.Cuisine); c != "" {
				out.Cuisine = &c
			} else {
				out.Cuisine = nil
			}
		}
		if set.PriceLevel != nil {
			v := *set.PriceLevel
			out.PriceLevel = &v
		}
		if len(set.Dietary) > 0 {
			out.Dietary = normalizeTags(append(out.Dietary, set.Dietary...))
		}
	}
	return out
}

// Removal clears one field back to its default. For dietary with a Tag,
// only that tag is subtracted.
type Removal struct {
	Field Field  `json:"field"`
	Tag   string `json:"tag,omitempty"`
}

// Directive is one turn's change request against the filter state.
// Application order: ClearAll, then Remove, then Set.
type Directive struct {
	Set      *Preferences
	Remove   *Removal
	ClearAll bool
}

// IsEmpty reports whether the directive changes nothing.
func (d Directive) IsEmpty() bool {
	return !d.ClearAll && d.Remove == nil && d.Set.IsEmpty()
}

// Validate checks value ranges. An invalid directive must be ignored as a whole.
func (d Directive) Validate() error {
	if p := d.Set; p != nil {
		if p.PriceLevel != nil && (*p.PriceLevel < 1 || *p.PriceLevel > 4) {
			return fmt.Errorf("%w: price_level must be between 1 and 4, got %d",
				domain.ErrInvalidDirective, *p.PriceLevel)
		}
		if p.MinRating != nil && (*p.MinRating < 0 || *p.MinRating > 5) {
			return fmt.Errorf("%w: min_rating must be between 0 and 5, got %g",
				domain.ErrInvalidDirective, *p.MinRating)
		}
		if p.RadiusMiles != nil && (*p.RadiusMiles < MinRadiusMiles || *p.RadiusMiles > MaxRadiusMiles) {
			return fmt.Errorf("%w: radius_miles must be between %g and %g, got %g",
				domain.ErrInvalidDirective, MinRadiusMiles, MaxRadiusMiles, *p.RadiusMiles)
		}
		if p.SortBy != nil {
			if _, ok := ParseSortBy(string(*p.SortBy)); !ok {
				return fmt.Errorf("%w: unknown sort_by %q", domain.ErrInvalidDirective, *p.SortBy)
			}
		}
	}
	if r := d.Remove; r != nil {
		if r.Field.String() == "unknown" {
			return fmt.Errorf("%w: unknown removal field", domain.ErrInvalidDirective)
		}
		if r.Tag != "" && r.Field != FieldDietary {
			return fmt.Errorf("%w: tag removal is only supported for dietary", domain.ErrInvalidDirective)
		}
	}
	return nil
}
