package venuefinder

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
)

// Location is a WGS84 coordinate in degrees.
type Location struct {
	Lat float64
	Lng float64
}

// Preferences sets filters for a turn. Nil fields are left unchanged;
// dietary tags are added to the current set.
type Preferences struct {
	Cuisine     *string
	PriceLevel  *int // 1..4
	MinRating   *float64
	RadiusMiles *float64
	Dietary     []string
	SortBy      string // relevance, rating, distance, price
}

// Turn is one user utterance.
type Turn struct {
	// SessionID continues a conversation. Empty starts a new one.
	SessionID string
	Message   string
	Location  *Location
	// Address is geocoded when Location is nil.
	Address string
	Set     *Preferences
	// Remove resets one filter ("cuisine", "price_level", "dietary", ...).
	// RemoveTag narrows a dietary removal to a single tag.
	Remove       string
	RemoveTag    string
	ClearFilters bool
}

// Venue is a recommended place.
type Venue struct {
	ID            string
	Name          string
	Location      Location
	Rating        float64
	PriceLevel    int // 0 when unknown
	Cuisine       string
	Address       string
	Phone         string
	Website       string
	DistanceMiles float64
	Dietary       []string
	ReviewSummary string
}

// Filters is the effective filter state of a session.
type Filters struct {
	Cuisine     string
	PriceLevel  int
	MinRating   float64
	RadiusMiles float64
	Dietary     []string
	SortBy      string
}

// Result is the outcome of a committed turn.
type Result struct {
	SessionID string
	Text      string
	Venues    []Venue
	Filters   Filters
	Summary   string
	Warnings  []string
	// Fetched is false when the turn was answered from the candidate cache.
	Fetched bool
	// CacheDecision explains Fetched: "reused", "no_cache", "query_changed",
	// "radius_changed", "location_changed", "outside_cached_area" or "expired".
	CacheDecision string
}

// Message is one utterance in a session transcript.
type Message struct {
	Role string // "user" or "assistant"
	Text string
	At   time.Time
}

// Session is a read-only view of a conversation.
type Session struct {
	ID       string
	Messages []Message
	Filters  Filters
	// Preferences holds the standing cuisine, price and dietary defaults.
	// ResetSession keeps them and starts the new conversation filtered by them.
	Preferences Preferences
	Location    *Location
	Venues      []Venue
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// --- converters ---

func toTurnRequest(t Turn) (pipeline.TurnRequest, error) {
	req := pipeline.TurnRequest{
		SessionID:    t.SessionID,
		Query:        strings.TrimSpace(t.Message),
		Address:      strings.TrimSpace(t.Address),
		ClearFilters: t.ClearFilters,
	}
	if t.Location != nil {
		req.Location = &geo.Point{Lat: t.Location.Lat, Lng: t.Location.Lng}
	}
	if p := t.Set; p != nil {
		req.Preferences = &filter.Preferences{
			Cuisine:     p.Cuisine,
			PriceLevel:  p.PriceLevel,
			MinRating:   p.MinRating,
			RadiusMiles: p.RadiusMiles,
			Dietary:     p.Dietary,
		}
		if p.SortBy != "" {
			sb := filter.SortBy(p.SortBy)
			if parsed, ok := filter.ParseSortBy(p.SortBy); ok {
				sb = parsed
			}
			req.Preferences.SortBy = &sb
		}
	}
	if t.Remove != "" {
		f, ok := filter.ParseField(t.Remove)
		if !ok {
			return pipeline.TurnRequest{}, fmt.Errorf("%w: unknown filter %q", domain.ErrInvalidDirective, t.Remove)
		}
		req.Remove = &filter.Removal{Field: f, Tag: t.RemoveTag}
	}
	return req, nil
}

func fromResult(r pipeline.Result) Result {
	return Result{
		SessionID:     r.SessionID,
		Text:          r.Text,
		Venues:        fromRecords(r.Venues),
		Filters:       fromState(r.Filters),
		Summary:       r.FilterSummary,
		Warnings:      r.Warnings,
		Fetched:       r.Fetched,
		CacheDecision: string(r.Reason),
	}
}

func fromRecords(records []venue.Record) []Venue {
	out := make([]Venue, 0, len(records))
	for _, r := range records {
		out = append(out, Venue{
			ID:            r.ID,
			Name:          r.Name,
			Location:      Location{Lat: r.Location.Lat, Lng: r.Location.Lng},
			Rating:        r.Rating,
			PriceLevel:    r.PriceLevel,
			Cuisine:       r.CuisineType,
			Address:       r.Address,
			Phone:         r.Phone,
			Website:       r.Website,
			DistanceMiles: r.DistanceMiles,
			Dietary:       r.Dietary,
			ReviewSummary: r.ReviewSummary,
		})
	}
	return out
}

func fromState(st filter.State) Filters {
	f := Filters{
		RadiusMiles: st.RadiusMiles,
		Dietary:     st.Dietary,
		SortBy:      string(st.SortBy),
	}
	if st.Cuisine != nil {
		f.Cuisine = *st.Cuisine
	}
	if st.PriceLevel != nil {
		f.PriceLevel = *st.PriceLevel
	}
	if st.MinRating != nil {
		f.MinRating = *st.MinRating
	}
	return f
}

func fromSession(s *domsession.Session) Session {
	out := Session{
		ID:       s.ID,
		Messages: make([]Message, 0, len(s.Turns)),
		Filters:  fromState(s.Filters),
		Preferences: Preferences{
			Cuisine:    s.Preferences.Cuisine,
			PriceLevel: s.Preferences.PriceLevel,
			Dietary:    slices.Clone(s.Preferences.Dietary),
		},
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, t := range s.Turns {
		out.Messages = append(out.Messages, Message{Role: string(t.Role), Text: t.Text, At: t.At})
	}
	if s.Location != nil {
		out.Location = &Location{Lat: s.Location.Lat, Lng: s.Location.Lng}
	}
	if s.Venues != nil {
		out.Venues = fromRecords(s.Venues.Records())
	}
	return out
}
