// Package candidate decides whether a session's fetched candidates can serve a new turn.
package candidate

import (
	"slices"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// Cache is the most recent provider result for a session together with the
// parameters that produced it. It is replaced wholesale on every fetch.
type Cache struct {
	Records     []venue.Record `json:"records"`
	Query       string         `json:"query"`
	Location    geo.Point      `json:"location"`
	RadiusMiles float64        `json:"radius_miles"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// Clone returns a deep copy. A nil cache clones to nil.
func (c *Cache) Clone() *Cache {
	if c == nil {
		return nil
	}
	out := *c
	out.Records = make([]venue.Record, len(c.Records))
	for i, r := range c.Records {
		out.Records[i] = r.Clone()
	}
	return &out
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

// Snapshot returns a copy of the records for read-only use by later stages.
func (c *Cache) Snapshot() []venue.Record {
	if c == nil {
		return nil
	}
	return slices.Clone(c.Records)
}
