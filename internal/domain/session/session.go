// Package session defines the per-conversation state.
package session

import (
	"slices"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain/candidate"
	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// Session is one conversation. A committed Session is never modified; the
// store hands out clones and installs a new value per commit.
type Session struct {
	ID       string              `json:"id"`
	Turns    []conversation.Turn `json:"turns"`
	Filters  filter.State        `json:"filters"`
	// Preferences are the user's standing cuisine, price and dietary
	// defaults. They outlive ClearAll and seed the filters on Restart.
	Preferences filter.Preferences `json:"preferences"`
	Location    *geo.Point         `json:"location,omitempty"`
	Query       string             `json:"query,omitempty"`
	Venues      *venue.Set         `json:"venues"`
	// Cache is treated as immutable once installed and is never persisted.
	Cache     *candidate.Cache `json:"-"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// New returns an empty session with default filters.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Filters:   filter.Default(),
		Venues:    venue.NewSet(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a working copy that can be mutated without affecting s.
func (s *Session) Clone() *Session {
	out := *s
	out.Turns = slices.Clone(s.Turns)
	out.Filters = s.Filters.Clone()
	out.Preferences = *s.Preferences.Clone()
	if s.Location != nil {
		loc := *s.Location
		out.Location = &loc
	}
	out.Venues = s.Venues.Clone()
	return &out
}

// AppendTurn records an utterance.
func (s *Session) AppendTurn(role conversation.Role, text string, venues []venue.Record, at time.Time) {
	s.Turns = append(s.Turns, conversation.Turn{Role: role, Text: text, Venues: venues, At: at})
}

// Restart returns a new conversation under the same id. Only the standing
// preferences carry over, applied as the initial filters.
func (s *Session) Restart(now time.Time) *Session {
	out := New(s.ID, now)
	out.Preferences = *s.Preferences.Clone()
	out.Filters, _ = filter.Merge(out.Filters, filter.Directive{Set: &out.Preferences})
	return out
}
