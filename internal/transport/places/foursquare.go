package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// FoursquareBaseURL is the Places API v3 endpoint.
const FoursquareBaseURL = "https://api.foursquare.com/v3"

const (
	foursquareMaxLimit     = 50
	foursquareMaxRadiusM   = 100000
	foursquareSearchFields = "fsq_id,name,geocodes,location,categories,rating,price,description"
	foursquareDetailFields = "fsq_id,name,geocodes,location,categories,rating,price,description,tel,website,tips,tastes"
)

// dietaryTastes maps Foursquare taste labels to dietary tags.
var dietaryTastes = map[string]string{
	"vegetarian":       "vegetarian",
	"vegetarian food":  "vegetarian",
	"vegan":            "vegan",
	"vegan food":       "vegan",
	"gluten-free":      "gluten-free",
	"gluten free":      "gluten-free",
	"halal":            "halal",
	"kosher":           "kosher",
}

// FoursquareConfig configures the Foursquare provider.
type FoursquareConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Foursquare queries the Foursquare Places API. Ratings arrive on a 0–10 scale.
type Foursquare struct {
	api apiClient
}

// NewFoursquare creates a Foursquare provider.
func NewFoursquare(cfg FoursquareConfig) *Foursquare {
	base := cfg.BaseURL
	if base == "" {
		base = FoursquareBaseURL
	}
	headers := http.Header{}
	headers.Set("Authorization", cfg.APIKey)
	return &Foursquare{api: newAPIClient("foursquare", strings.TrimRight(base, "/"), cfg.Timeout, headers)}
}

type fsqPlace struct {
	FsqID    string `json:"fsq_id"`
	Name     string `json:"name"`
	Geocodes struct {
		Main *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"main"`
	} `json:"geocodes"`
	Location struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"location"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Rating      float64  `json:"rating"`
	Price       int      `json:"price"`
	Description string   `json:"description"`
	Tel         string   `json:"tel"`
	Website     string   `json:"website"`
	Tastes      []string `json:"tastes"`
	Tips        []struct {
		Text string `json:"text"`
	} `json:"tips"`
}

type fsqSearchResponse struct {
	Results []fsqPlace `json:"results"`
}

// Search calls places/search around q.Location.
func (f *Foursquare) Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error) {
	params := url.Values{}
	params.Set("query", strings.TrimSpace(q.Text))
	params.Set("fields", foursquareSearchFields)
	params.Set("limit", strconv.Itoa(clampFsqLimit(q.Limit)))
	if q.Location.Valid() {
		params.Set("ll", fmt.Sprintf("%f,%f", q.Location.Lat, q.Location.Lng))
		params.Set("radius", strconv.Itoa(min(int(geo.MilesToMeters(q.RadiusMiles)), foursquareMaxRadiusM)))
	}

	var resp fsqSearchResponse
	if err := f.api.do(ctx, http.MethodGet, "/places/search?"+params.Encode(), nil, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]venue.Record, 0, len(resp.Results))
	for _, p := range resp.Results {
		out = append(out, p.toRecord())
	}
	return out, nil
}

// Details fetches places/{fsq_id} with contact data, tastes and tips.
func (f *Foursquare) Details(ctx context.Context, id string) (venue.Record, error) {
	if id == "" {
		return venue.Record{}, fmt.Errorf("foursquare details: empty id: %w", domain.ErrProviderError)
	}
	var p fsqPlace
	path := "/places/" + url.PathEscape(id) + "?fields=" + url.QueryEscape(foursquareDetailFields)
	if err := f.api.do(ctx, http.MethodGet, path, nil, nil, &p); err != nil {
		return venue.Record{}, err
	}
	rec := p.toRecord()
	rec.Enriched = true
	return rec, nil
}

// Geocode resolves address with a single-result search using near=.
func (f *Foursquare) Geocode(ctx context.Context, address string) (geo.Point, error) {
	params := url.Values{}
	params.Set("near", strings.TrimSpace(address))
	params.Set("fields", "geocodes")
	params.Set("limit", "1")

	var resp fsqSearchResponse
	if err := f.api.do(ctx, http.MethodGet, "/places/search?"+params.Encode(), nil, nil, &resp); err != nil {
		return geo.Point{}, err
	}
	if len(resp.Results) == 0 || resp.Results[0].Geocodes.Main == nil {
		return geo.Point{}, fmt.Errorf("foursquare geocode %q: %w", address, domain.ErrNotFound)
	}
	m := resp.Results[0].Geocodes.Main
	return geo.Point{Lat: m.Latitude, Lng: m.Longitude}, nil
}

func (p fsqPlace) toRecord() venue.Record {
	rec := venue.Record{
		ID:          p.FsqID,
		Provider:    "foursquare",
		Name:        p.Name,
		Address:     p.Location.FormattedAddress,
		Rating:      venue.NormalizeRating(p.Rating, venue.TenPoint),
		PriceLevel:  venue.ClampPrice(p.Price),
		Description: p.Description,
		Phone:       p.Tel,
		Website:     p.Website,
	}
	if m := p.Geocodes.Main; m != nil {
		rec.Location = geo.Point{Lat: m.Latitude, Lng: m.Longitude}
	}
	if len(p.Categories) > 0 {
		rec.CuisineType = venue.CuisineFromType(p.Categories[0].Name)
	}
	seen := map[string]bool{}
	for _, t := range p.Tastes {
		if tag, ok := dietaryTastes[strings.ToLower(t)]; ok && !seen[tag] {
			seen[tag] = true
			rec.Dietary = append(rec.Dietary, tag)
		}
	}
	for i, tip := range p.Tips {
		if i == maxReviews {
			break
		}
		rec.Reviews = append(rec.Reviews, venue.Review{Author: "Foursquare user", Text: tip.Text})
	}
	return rec
}

func clampFsqLimit(limit int) int {
	if limit <= 0 || limit > foursquareMaxLimit {
		return foursquareMaxLimit
	}
	return limit
}
