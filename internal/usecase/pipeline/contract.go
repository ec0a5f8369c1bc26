package pipeline

import (
	"context"

	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// PlaceProvider searches, enriches and geocodes places.
type PlaceProvider interface {
	Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error)
	Details(ctx context.Context, id string) (venue.Record, error)
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

// SessionStore serializes turns per session.
type SessionStore interface {
	WithSession(ctx context.Context, id string, fn func(*domsession.Session) error) (string, error)
}

// Composer writes the assistant response for a ranked list.
type Composer interface {
	Compose(ctx context.Context, in conversation.ComposeInput) (string, error)
}

// Ranker filters and orders candidates.
type Ranker interface {
	Apply(candidates []venue.Record, st filter.State, query string) []venue.Record
}
