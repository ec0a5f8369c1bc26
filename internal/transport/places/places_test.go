package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

var sf = geo.Point{Lat: 37.77, Lng: -122.42}

func TestGoogle_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/places:searchText" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "test-key" {
			t.Errorf("unexpected api key header: %q", r.Header.Get("X-Goog-Api-Key"))
		}
		if r.Header.Get("X-Goog-FieldMask") != googleSearchMask {
			t.Errorf("unexpected field mask: %q", r.Header.Get("X-Goog-FieldMask"))
		}

		var req googleSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.TextQuery != "pizza" || req.PageSize != 20 || req.LocationBias == nil {
			t.Errorf("unexpected request body: %+v", req)
		}
		if r := req.LocationBias.Circle.Radius; r < 8046 || r > 8047 {
			t.Errorf("bias radius = %v, want ~8046.72m", r)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places":[{
			"id":"abc","displayName":{"text":"Tony's"},"formattedAddress":"1 Main St",
			"location":{"latitude":37.78,"longitude":-122.41},"rating":4.56,
			"priceLevel":"PRICE_LEVEL_MODERATE","primaryType":"pizza_restaurant",
			"types":["pizza_restaurant","restaurant"],"servesVegetarianFood":true,
			"editorialSummary":{"text":"Classic slices"}
		}]}`))
	}))
	defer server.Close()

	g := NewGoogle(GoogleConfig{APIKey: "test-key", BaseURL: server.URL})
	got, err := g.Search(context.Background(), venue.SearchQuery{Text: "pizza", Location: sf, RadiusMiles: 5, Limit: 30})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	r := got[0]
	if r.Identity() != "google:abc" || r.Name != "Tony's" || r.Rating != 4.6 || r.PriceLevel != 2 {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.CuisineType != "pizza" || !r.HasDietary("vegetarian") || r.Description != "Classic slices" {
		t.Errorf("unexpected enrichment fields: %+v", r)
	}
}

func TestGoogle_Details(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/places/abc" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"id":"abc","displayName":{"text":"Tony's"},"nationalPhoneNumber":"(415) 555-0100",
			"websiteUri":"https://tonys.example","reviews":[
				{"rating":5,"text":{"text":"Great crust"},"authorAttribution":{"displayName":"Ana"}},
				{"rating":3,"text":{"text":"ok"},"authorAttribution":{}}
			]}`))
	}))
	defer server.Close()

	g := NewGoogle(GoogleConfig{APIKey: "k", BaseURL: server.URL})
	r, err := g.Details(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if !r.Enriched || r.Phone != "(415) 555-0100" || r.Website != "https://tonys.example" {
		t.Errorf("unexpected record: %+v", r)
	}
	if len(r.Reviews) != 2 || r.Reviews[0].Author != "Ana" || r.Reviews[1].Author != "Anonymous" {
		t.Errorf("unexpected reviews: %+v", r.Reviews)
	}
}

func TestGoogle_Geocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req googleSearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.PageSize != 1 {
			t.Errorf("pageSize = %d, want 1", req.PageSize)
		}
		if req.TextQuery == "nowhere" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"places":[{"location":{"latitude":40.7128,"longitude":-74.006}}]}`))
	}))
	defer server.Close()

	g := NewGoogle(GoogleConfig{APIKey: "k", BaseURL: server.URL})
	p, err := g.Geocode(context.Background(), "New York")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}
	if p.Lat != 40.7128 || p.Lng != -74.006 {
		t.Errorf("unexpected point: %+v", p)
	}

	if _, err := g.Geocode(context.Background(), "nowhere"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGoogle_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusTooManyRequests, `{"error":{"message":"quota"}}`, domain.ErrProviderTransient},
		{http.StatusServiceUnavailable, ``, domain.ErrProviderTransient},
		{http.StatusRequestTimeout, ``, domain.ErrProviderTransient},
		{http.StatusBadRequest, `{"error":{"message":"bad field mask"}}`, domain.ErrProviderError},
		{http.StatusForbidden, ``, domain.ErrProviderError},
		{http.StatusNotFound, ``, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			g := NewGoogle(GoogleConfig{APIKey: "k", BaseURL: server.URL})
			_, err := g.Search(context.Background(), venue.SearchQuery{Text: "x"})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGoogle_TimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	g := NewGoogle(GoogleConfig{APIKey: "k", BaseURL: server.URL, Timeout: 10 * time.Millisecond})
	_, err := g.Search(context.Background(), venue.SearchQuery{Text: "x"})
	if !errors.Is(err, domain.ErrProviderTransient) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestFoursquare_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/places/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "fsq-key" {
			t.Errorf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		q := r.URL.Query()
		if q.Get("query") != "sushi" || q.Get("radius") != "3218" || q.Get("limit") != "10" {
			t.Errorf("unexpected query: %v", q)
		}
		_, _ = w.Write([]byte(`{"results":[{
			"fsq_id":"f1","name":"Sushi Zen","geocodes":{"main":{"latitude":37.771,"longitude":-122.421}},
			"location":{"formatted_address":"2 Side St"},"categories":[{"name":"Sushi Restaurant"}],
			"rating":8.6,"price":3
		}]}`))
	}))
	defer server.Close()

	f := NewFoursquare(FoursquareConfig{APIKey: "fsq-key", BaseURL: server.URL})
	got, err := f.Search(context.Background(), venue.SearchQuery{Text: "sushi", Location: sf, RadiusMiles: 2, Limit: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	r := got[0]
	if r.Identity() != "foursquare:f1" || r.Rating != 4.3 || r.PriceLevel != 3 || r.CuisineType != "sushi" {
		t.Errorf("unexpected record: %+v", r)
	}
}

func TestFoursquare_DetailsAndGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/places/f1":
			_, _ = w.Write([]byte(`{"fsq_id":"f1","name":"Green Bowl","tel":"555","website":"https://g.example",
				"tastes":["Vegan","healthy","vegan food"],"tips":[{"text":"try the bowl"}]}`))
		case r.URL.Path == "/places/search" && r.URL.Query().Get("near") != "":
			_, _ = w.Write([]byte(`{"results":[{"geocodes":{"main":{"latitude":51.5,"longitude":-0.12}}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	f := NewFoursquare(FoursquareConfig{APIKey: "k", BaseURL: server.URL})

	r, err := f.Details(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Details failed: %v", err)
	}
	if !r.Enriched || r.Phone != "555" || len(r.Dietary) != 1 || r.Dietary[0] != "vegan" || len(r.Reviews) != 1 {
		t.Errorf("unexpected record: %+v", r)
	}

	p, err := f.Geocode(context.Background(), "London")
	if err != nil {
		t.Fatalf("Geocode failed: %v", err)
	}
	if p.Lat != 51.5 || p.Lng != -0.12 {
		t.Errorf("unexpected point: %+v", p)
	}
}

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"quota exceeded"}}`, "quota exceeded"},
		{`{"message":"invalid key"}`, "invalid key"},
		{`not json`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := extractDetail([]byte(tt.body)); got != tt.want {
			t.Errorf("extractDetail(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
