package candidate

import (
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
)

// Reason explains a fetch decision.
type Reason string

// Decision reasons.
const (
	ReasonNoCache           Reason = "no_cache"
	ReasonRadiusChanged     Reason = "radius_changed"
	ReasonLocationChanged   Reason = "location_changed"
	ReasonOutsideCachedArea Reason = "outside_cached_area"
	ReasonQueryChanged      Reason = "query_changed"
	ReasonExpired           Reason = "expired"
	ReasonReused            Reason = "reused"
)

// Policy tunes reuse.
type Policy struct {
	SimilarityThreshold    float64
	LocationToleranceMiles float64
	// MaxAge of zero disables expiry.
	MaxAge time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		SimilarityThreshold:    0.5,
		LocationToleranceMiles: 0.1,
		MaxAge:                 15 * time.Minute,
	}
}

// Params describes the request a cache must serve.
type Params struct {
	Query       string
	Location    geo.Point
	RadiusMiles float64
	Now         time.Time
}

// Decision is the outcome of Decide.
type Decision struct {
	Reuse  bool
	Reason Reason
	// EffectiveQuery is the query to fetch with, or the cached query when a
	// refinement without its own intent is reused.
	EffectiveQuery string
}

// Decide reports whether c can serve p. Among filter fields only the radius
// is consulted; every other field is applied by ranking over the cached set.
// The result depends only on its arguments.
func Decide(c *Cache, p Params, changes filter.ChangeSet, pol Policy) Decision {
	intent := IntentTokens(p.Query)
	if c == nil {
		return Decision{Reason: ReasonNoCache, EffectiveQuery: p.Query}
	}

	effective := p.Query
	if len(intent) == 0 {
		effective = c.Query
	}
	refetch := func(r Reason) Decision {
		return Decision{Reason: r, EffectiveQuery: effective}
	}

	if changes.Has(filter.FieldRadius) {
		return refetch(ReasonRadiusChanged)
	}
	moved := geo.DistanceMiles(c.Location, p.Location)
	if moved > pol.LocationToleranceMiles {
		return refetch(ReasonLocationChanged)
	}
	if moved+p.RadiusMiles > c.RadiusMiles+pol.LocationToleranceMiles {
		return refetch(ReasonOutsideCachedArea)
	}
	if len(intent) > 0 && jaccard(intent, IntentTokens(c.Query)) < pol.SimilarityThreshold {
		return refetch(ReasonQueryChanged)
	}
	if pol.MaxAge > 0 && p.Now.Sub(c.FetchedAt) > pol.MaxAge {
		return refetch(ReasonExpired)
	}
	return Decision{Reuse: true, Reason: ReasonReused, EffectiveQuery: effective}
}
