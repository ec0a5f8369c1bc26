package filter

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Summary renders the active filters for display, e.g. "Italian • $$ • ≥4★ • within 3mi".
func (s State) Summary() string {
	var parts []string
	if s.Cuisine != nil {
		parts = append(parts, titleCase(*s.Cuisine))
	}
	if s.PriceLevel != nil {
		parts = append(parts, strings.Repeat("$", *s.PriceLevel))
	}
	if s.MinRating != nil {
		parts = append(parts, "≥"+formatNumber(*s.MinRating)+"★")
	}
	if len(s.Dietary) > 0 {
		parts = append(parts, strings.Join(s.Dietary, " + "))
	}
	if s.RadiusMiles != DefaultRadiusMiles {
		parts = append(parts, "within "+formatNumber(s.RadiusMiles)+"mi")
	}
	if s.SortBy.Explicit() {
		parts = append(parts, "sorted by "+string(s.SortBy))
	}
	if len(parts) == 0 {
		return "No filters"
	}
	return strings.Join(parts, " • ")
}

// Warnings lists combinations likely to produce few results.
func (s State) Warnings() []string {
	var out []string
	if s.RadiusMiles < 2 {
		out = append(out, fmt.Sprintf("Small search radius (%smi) may limit results", formatNumber(s.RadiusMiles)))
	}
	if s.MinRating != nil && *s.MinRating >= 4.5 {
		out = append(out, fmt.Sprintf("High rating requirement (≥%s★) may limit results", formatNumber(*s.MinRating)))
	}
	if s.ActiveCount() >= 4 {
		out = append(out, "Many filters active, consider removing some if results are limited")
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
