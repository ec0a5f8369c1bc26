package venue

import (
	"math"
	"strings"
)

// RatingScale is the native scale of a provider's rating.
type RatingScale int

// Known scales.
const (
	FiveStar RatingScale = iota
	TenPoint
)

// NormalizeRating converts v to the 0–5 scale, clamped and rounded to one decimal.
func NormalizeRating(v float64, scale RatingScale) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if scale == TenPoint {
		v /= 2
	}
	v = math.Min(v, 5)
	return math.Round(v*10) / 10
}

var googlePriceLevels = map[string]int{
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// PriceFromGoogle maps a Places API price enum to 1–4. Free and unknown map to 0.
func PriceFromGoogle(s string) int {
	return googlePriceLevels[strings.ToUpper(strings.TrimSpace(s))]
}

// PriceFromSymbols maps "$".."$$$$" to 1–4, 0 when s is not a dollar string.
func PriceFromSymbols(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, "$") != "" {
		return 0
	}
	return ClampPrice(len(s))
}

// ClampPrice bounds p to 0–4.
func ClampPrice(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 4:
		return 4
	}
	return p
}

var nonCuisineTypes = map[string]bool{
	"restaurant": true, "food": true, "point_of_interest": true, "establishment": true,
	"store": true, "meal_takeaway": true, "meal_delivery": true,
}

// CuisineFromType derives a cuisine name from a provider type tag,
// e.g. "italian_restaurant" -> "italian". Generic tags yield "".
func CuisineFromType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" || nonCuisineTypes[t] {
		return ""
	}
	t = strings.TrimSuffix(t, "_restaurant")
	t = strings.TrimSuffix(t, " restaurant")
	return strings.ReplaceAll(t, "_", " ")
}

// CuisineFromTypes returns the first specific cuisine among types.
func CuisineFromTypes(types []string) string {
	for _, t := range types {
		if c := CuisineFromType(t); c != "" {
			return c
		}
	}
	return ""
}
