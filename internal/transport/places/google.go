package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// GoogleBaseURL is the Places API (New) endpoint.
const GoogleBaseURL = "https://places.googleapis.com/v1"

// Google Places API caps pageSize at 20 and the location bias radius at 50km.
const (
	googleMaxPageSize   = 20
	googleMaxBiasMeters = 50000.0
	maxReviews          = 5
)

var (
	googleSearchMask = strings.Join([]string{
		"places.id", "places.displayName", "places.formattedAddress", "places.location",
		"places.rating", "places.priceLevel", "places.types", "places.primaryType",
		"places.editorialSummary", "places.servesVegetarianFood",
	}, ",")
	googleDetailsMask = strings.Join([]string{
		"id", "displayName", "formattedAddress", "location", "rating", "priceLevel", "types",
		"primaryType", "editorialSummary", "servesVegetarianFood", "nationalPhoneNumber",
		"internationalPhoneNumber", "websiteUri", "reviews",
	}, ",")
	googleGeocodeMask = "places.location"
)

// GoogleConfig configures the Google provider.
type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Google queries the Places API (New).
type Google struct {
	api apiClient
}

// NewGoogle creates a Google Places provider.
func NewGoogle(cfg GoogleConfig) *Google {
	base := cfg.BaseURL
	if base == "" {
		base = GoogleBaseURL
	}
	headers := http.Header{}
	headers.Set("X-Goog-Api-Key", cfg.APIKey)
	return &Google{api: newAPIClient("google", strings.TrimRight(base, "/"), cfg.Timeout, headers)}
}

type googleLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type googleText struct {
	Text string `json:"text"`
}

type googlePlace struct {
	ID                       string        `json:"id"`
	DisplayName              googleText    `json:"displayName"`
	FormattedAddress         string        `json:"formattedAddress"`
	Location                 *googleLatLng `json:"location"`
	Rating                   float64       `json:"rating"`
	PriceLevel               string        `json:"priceLevel"`
	Types                    []string      `json:"types"`
	PrimaryType              string        `json:"primaryType"`
	EditorialSummary         googleText    `json:"editorialSummary"`
	ServesVegetarianFood     bool          `json:"servesVegetarianFood"`
	NationalPhoneNumber      string        `json:"nationalPhoneNumber"`
	InternationalPhoneNumber string        `json:"internationalPhoneNumber"`
	WebsiteURI               string        `json:"websiteUri"`
	Reviews                  []struct {
		Rating            float64    `json:"rating"`
		Text              googleText `json:"text"`
		AuthorAttribution struct {
			DisplayName string `json:"displayName"`
		} `json:"authorAttribution"`
	} `json:"reviews"`
}

type googleSearchRequest struct {
	TextQuery    string              `json:"textQuery"`
	PageSize     int                 `json:"pageSize,omitempty"`
	LocationBias *googleLocationBias `json:"locationBias,omitempty"`
}

type googleLocationBias struct {
	Circle struct {
		Center googleLatLng `json:"center"`
		Radius float64      `json:"radius"`
	} `json:"circle"`
}

type googleSearchResponse struct {
	Places []googlePlace `json:"places"`
}

// Search runs places:searchText biased to a circle around q.Location.
func (g *Google) Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error) {
	req := googleSearchRequest{TextQuery: strings.TrimSpace(q.Text), PageSize: clampPageSize(q.Limit)}
	if req.TextQuery == "" {
		req.TextQuery = "restaurants"
	}
	if q.Location.Valid() {
		bias := &googleLocationBias{}
		bias.Circle.Center = googleLatLng{Latitude: q.Location.Lat, Longitude: q.Location.Lng}
		bias.Circle.Radius = min(geo.MilesToMeters(q.RadiusMiles), googleMaxBiasMeters)
		req.LocationBias = bias
	}

	var resp googleSearchResponse
	if err := g.api.do(ctx, http.MethodPost, "/places:searchText", fieldMask(googleSearchMask), req, &resp); err != nil {
		return nil, err
	}

	out := make([]venue.Record, 0, len(resp.Places))
	for _, p := range resp.Places {
		out = append(out, p.toRecord())
	}
	return out, nil
}

// Details fetches places/{id} with phone, website and reviews.
func (g *Google) Details(ctx context.Context, id string) (venue.Record, error) {
	if id == "" {
		return venue.Record{}, fmt.Errorf("google details: empty id: %w", domain.ErrProviderError)
	}
	var p googlePlace
	path := "/places/" + url.PathEscape(id)
	if err := g.api.do(ctx, http.MethodGet, path, fieldMask(googleDetailsMask), nil, &p); err != nil {
		return venue.Record{}, err
	}
	rec := p.toRecord()
	rec.Enriched = true
	return rec, nil
}

// Geocode resolves address through a single-result text search.
func (g *Google) Geocode(ctx context.Context, address string) (geo.Point, error) {
	req := googleSearchRequest{TextQuery: strings.TrimSpace(address), PageSize: 1}
	var resp googleSearchResponse
	if err := g.api.do(ctx, http.MethodPost, "/places:searchText", fieldMask(googleGeocodeMask), req, &resp); err != nil {
		return geo.Point{}, err
	}
	if len(resp.Places) == 0 || resp.Places[0].Location == nil {
		return geo.Point{}, fmt.Errorf("google geocode %q: %w", address, domain.ErrNotFound)
	}
	loc := resp.Places[0].Location
	return geo.Point{Lat: loc.Latitude, Lng: loc.Longitude}, nil
}

func (p googlePlace) toRecord() venue.Record {
	rec := venue.Record{
		ID:          p.ID,
		Provider:    "google",
		Name:        p.DisplayName.Text,
		Address:     p.FormattedAddress,
		Rating:      venue.NormalizeRating(p.Rating, venue.FiveStar),
		PriceLevel:  venue.PriceFromGoogle(p.PriceLevel),
		CuisineType: venue.CuisineFromTypes(append([]string{p.PrimaryType}, p.Types...)),
		Description: p.EditorialSummary.Text,
		Website:     p.WebsiteURI,
		Phone:       p.NationalPhoneNumber,
	}
	if rec.Phone == "" {
		rec.Phone = p.InternationalPhoneNumber
	}
	if p.Location != nil {
		rec.Location = geo.Point{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	if p.ServesVegetarianFood {
		rec.Dietary = []string{"vegetarian"}
	}
	for i, r := range p.Reviews {
		if i == maxReviews {
			break
		}
		author := r.AuthorAttribution.DisplayName
		if author == "" {
			author = "Anonymous"
		}
		rec.Reviews = append(rec.Reviews, venue.Review{
			Author: author,
			Rating: venue.NormalizeRating(r.Rating, venue.FiveStar),
			Text:   r.Text.Text,
		})
	}
	return rec
}

func fieldMask(mask string) http.Header {
	h := http.Header{}
	h.Set("X-Goog-FieldMask", mask)
	return h
}

func clampPageSize(limit int) int {
	if limit <= 0 || limit > googleMaxPageSize {
		return googleMaxPageSize
	}
	return limit
}
