package chi

import (
	"strings"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	domusage "github.com/kailas-cloud/venuefinder/internal/domain/usage"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
)

// Value ranges of preferences are not validated here: an out-of-range
// directive is ignored by the pipeline and reported as a warning.

// LocationDTO is a coordinate pair.
type LocationDTO struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// PreferencesDTO carries the filters a turn sets.
type PreferencesDTO struct {
	Cuisine     *string  `json:"cuisine,omitempty" validate:"omitempty,max=64"`
	PriceLevel  *int     `json:"price_level,omitempty"`
	PriceRange  *string  `json:"price_range,omitempty" validate:"omitempty,max=8"`
	MinRating   *float64 `json:"min_rating,omitempty"`
	RadiusMiles *float64 `json:"radius_miles,omitempty"`
	Dietary     []string `json:"dietary,omitempty" validate:"omitempty,max=10,dive,min=1,max=32"`
	SortBy      *string  `json:"sort_by,omitempty" validate:"omitempty,max=16"`
}

// RemoveDTO removes one filter field, or one dietary tag.
type RemoveDTO struct {
	Field string `json:"field" validate:"required,max=32"`
	Tag   string `json:"tag,omitempty" validate:"omitempty,max=32"`
}

// TurnRequestDTO is the body of POST /v1/turns.
type TurnRequestDTO struct {
	SessionID    string          `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Query        string          `json:"query" validate:"max=1000"`
	Location     *LocationDTO    `json:"location,omitempty"`
	Address      string          `json:"address,omitempty" validate:"omitempty,max=256"`
	Preferences  *PreferencesDTO `json:"preferences,omitempty"`
	Remove       *RemoveDTO      `json:"remove,omitempty"`
	ClearFilters bool            `json:"clear_filters,omitempty"`
}

// FilterStateDTO is the effective filter state with its summary.
type FilterStateDTO struct {
	Filters  filter.State `json:"filters"`
	Summary  string       `json:"summary"`
	Warnings []string     `json:"warnings,omitempty"`
}

// TurnResponseDTO is the body returned for a committed turn.
type TurnResponseDTO struct {
	SessionID   string         `json:"session_id"`
	Response    string         `json:"response"`
	Venues      []venue.Record `json:"venues"`
	FilterState FilterStateDTO `json:"filter_state"`
	Fetched     bool           `json:"fetched"`
	CacheReason string         `json:"cache_reason"`
}

// TurnDTO is one history entry.
type TurnDTO struct {
	Role       conversation.Role `json:"role"`
	Text       string            `json:"text"`
	VenueCount int               `json:"venue_count,omitempty"`
	At         time.Time         `json:"at"`
}

// SessionDTO is the body of GET /v1/sessions/{id}.
type SessionDTO struct {
	ID          string         `json:"id"`
	Turns       []TurnDTO      `json:"turns"`
	FilterState FilterStateDTO `json:"filter_state"`
	Preferences PreferencesDTO `json:"preferences"`
	Location    *geo.Point     `json:"location,omitempty"`
	Query       string         `json:"query,omitempty"`
	VenueCount  int            `json:"venue_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// VenuesDTO is the cumulative set of venues shown in a session.
type VenuesDTO struct {
	SessionID string         `json:"session_id"`
	Venues    []venue.Record `json:"venues"`
	Count     int            `json:"count"`
}

// ToTurnRequest converts the body into a pipeline request.
func (d *TurnRequestDTO) ToTurnRequest() pipeline.TurnRequest {
	req := pipeline.TurnRequest{
		SessionID:    strings.TrimSpace(d.SessionID),
		Query:        strings.TrimSpace(d.Query),
		Address:      d.Address,
		ClearFilters: d.ClearFilters,
	}
	if d.Location != nil {
		req.Location = &geo.Point{Lat: d.Location.Lat, Lng: d.Location.Lng}
	}
	if d.Preferences != nil {
		req.Preferences = d.Preferences.toPreferences()
	}
	if d.Remove != nil {
		// Unknown fields stay invalid so the pipeline reports them.
		f, _ := filter.ParseField(d.Remove.Field)
		req.Remove = &filter.Removal{Field: f, Tag: strings.TrimSpace(d.Remove.Tag)}
	}
	return req
}

func (p *PreferencesDTO) toPreferences() *filter.Preferences {
	out := &filter.Preferences{
		Cuisine:     p.Cuisine,
		PriceLevel:  p.PriceLevel,
		MinRating:   p.MinRating,
		RadiusMiles: p.RadiusMiles,
		Dietary:     p.Dietary,
	}
	if out.PriceLevel == nil && p.PriceRange != nil {
		level := venue.PriceFromSymbols(*p.PriceRange)
		out.PriceLevel = &level
	}
	if p.SortBy != nil {
		sb, ok := filter.ParseSortBy(*p.SortBy)
		if !ok {
			sb = filter.SortBy(*p.SortBy)
		}
		out.SortBy = &sb
	}
	return out
}

func turnResponseFromResult(r pipeline.Result) TurnResponseDTO {
	venues := r.Venues
	if venues == nil {
		venues = []venue.Record{}
	}
	return TurnResponseDTO{
		SessionID: r.SessionID,
		Response:  r.Text,
		Venues:    venues,
		FilterState: FilterStateDTO{
			Filters:  r.Filters,
			Summary:  r.FilterSummary,
			Warnings: r.Warnings,
		},
		Fetched:     r.Fetched,
		CacheReason: string(r.Reason),
	}
}

func sessionToDTO(s *domsession.Session) SessionDTO {
	turns := make([]TurnDTO, len(s.Turns))
	for i, t := range s.Turns {
		turns[i] = TurnDTO{Role: t.Role, Text: t.Text, VenueCount: len(t.Venues), At: t.At}
	}
	return SessionDTO{
		ID:    s.ID,
		Turns: turns,
		FilterState: FilterStateDTO{
			Filters:  s.Filters,
			Summary:  s.Filters.Summary(),
			Warnings: s.Filters.Warnings(),
		},
		Preferences: PreferencesDTO{
			Cuisine:    s.Preferences.Cuisine,
			PriceLevel: s.Preferences.PriceLevel,
			Dietary:    s.Preferences.Dietary,
		},
		Location:   s.Location,
		Query:      s.Query,
		VenueCount: s.Venues.Len(),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

// BudgetDTO is a token budget snapshot. A zero limit means unlimited.
type BudgetDTO struct {
	TokensLimit     int64  `json:"tokens_limit"`
	TokensUsed      int64  `json:"tokens_used"`
	TokensRemaining *int64 `json:"tokens_remaining"`
	IsExhausted     bool   `json:"is_exhausted"`
	ResetsAt        string `json:"resets_at"`
}

// UsageDTO is the body of GET /v1/usage.
type UsageDTO struct {
	Period      domusage.Period `json:"period"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	Model       string          `json:"model,omitempty"`
	Budget      BudgetDTO       `json:"budget"`
}

func usageToDTO(r domusage.Report) UsageDTO {
	b := r.Budget()
	dto := UsageDTO{
		Period:      r.Period(),
		PeriodStart: millisToISO(r.PeriodStart()),
		PeriodEnd:   millisToISO(r.PeriodEnd()),
		Model:       r.Model(),
		Budget: BudgetDTO{
			TokensLimit: b.TokensLimit(),
			TokensUsed:  b.TokensUsed(),
			IsExhausted: b.IsExhausted(),
			ResetsAt:    millisToISO(b.ResetsAt()),
		},
	}
	if rem := b.TokensRemaining(); rem >= 0 {
		dto.Budget.TokensRemaining = &rem
	}
	return dto
}

func millisToISO(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
