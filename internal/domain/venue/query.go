package venue

import "github.com/kailas-cloud/venuefinder/internal/domain/geo"

// SearchQuery is a provider text search around a point.
type SearchQuery struct {
	Text        string
	Location    geo.Point
	RadiusMiles float64
	Limit       int
}
