package provider

import (
	"context"

	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// Provider is an external place source. Implementations classify retryable
// failures by wrapping domain.ErrProviderTransient.
type Provider interface {
	Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error)
	Details(ctx context.Context, id string) (venue.Record, error)
	Geocode(ctx context.Context, address string) (geo.Point, error)
}
