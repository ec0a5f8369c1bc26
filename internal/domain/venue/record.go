// Package venue defines the normalized place record shared by every provider.
package venue

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
)

// Review is a single user review attached to an enriched record.
type Review struct {
	Author string  `json:"author"`
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
}

// Record is a normalized place. Rating is on a 0–5 scale, PriceLevel is 1–4
// with 0 meaning unknown.
type Record struct {
	ID            string    `json:"id,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	Name          string    `json:"name"`
	Location      geo.Point `json:"location"`
	Rating        float64   `json:"rating"`
	PriceLevel    int       `json:"price_level,omitempty"`
	CuisineType   string    `json:"cuisine_type,omitempty"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Website       string    `json:"website,omitempty"`
	DistanceMiles float64   `json:"distance_miles"`
	Description   string    `json:"description,omitempty"`
	Dietary       []string  `json:"dietary,omitempty"`
	Reviews       []Review  `json:"reviews,omitempty"`
	ReviewSummary string    `json:"review_summary,omitempty"`
	Enriched      bool      `json:"enriched,omitempty"`
}

// Identity returns the deduplication key: the provider id when known,
// otherwise the lowercased name plus coordinates rounded to 4 places.
func (r Record) Identity() string {
	if r.ID != "" {
		if r.Provider != "" {
			return r.Provider + ":" + r.ID
		}
		return r.ID
	}
	return fmt.Sprintf("name:%s@%.4f,%.4f",
		strings.ToLower(strings.TrimSpace(r.Name)),
		geo.Round(r.Location.Lat, 4), geo.Round(r.Location.Lng, 4))
}

// HasPrice reports whether the price level is known.
func (r Record) HasPrice() bool { return r.PriceLevel > 0 }

// HasDietary reports whether the record advertises tag. Missing data is a non-match.
func (r Record) HasDietary(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return slices.ContainsFunc(r.Dietary, func(d string) bool {
		return strings.EqualFold(d, tag)
	})
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.Dietary = slices.Clone(r.Dietary)
	out.Reviews = slices.Clone(r.Reviews)
	return out
}

// Merge overlays the enrichment fields of detail onto r. Search-time fields
// that detail leaves empty are kept.
func (r Record) Merge(detail Record) Record {
	out := r.Clone()
	if detail.Phone != "" {
		out.Phone = detail.Phone
	}
	if detail.Website != "" {
		out.Website = detail.Website
	}
	if detail.Address != "" {
		out.Address = detail.Address
	}
	if detail.Description != "" {
		out.Description = detail.Description
	}
	if detail.Rating > 0 {
		out.Rating = detail.Rating
	}
	if detail.PriceLevel > 0 {
		out.PriceLevel = detail.PriceLevel
	}
	if detail.CuisineType != "" && out.CuisineType == "" {
		out.CuisineType = detail.CuisineType
	}
	if len(detail.Dietary) > 0 {
		out.Dietary = slices.Clone(detail.Dietary)
	}
	if len(detail.Reviews) > 0 {
		out.Reviews = slices.Clone(detail.Reviews)
	}
	if detail.ReviewSummary != "" {
		out.ReviewSummary = detail.ReviewSummary
	}
	out.Enriched = true
	return out
}
