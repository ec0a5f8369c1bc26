package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	chiTransport "github.com/kailas-cloud/venuefinder/internal/transport/chi"
)

type askFlags struct {
	server    string
	token     string
	session   string
	lat, lng  float64
	address   string
	cuisine   string
	price     int
	minRating float64
	radius    float64
	dietary   []string
	sortBy    string
	remove    string
	clear     bool
	asJSON    bool
}

func newAskCmd() *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Send one conversational turn to a running server",
		Long: `Send one conversational turn to a running server.

Examples:
  venuefinder ask "pizza near me" --lat 37.7749 --lng -122.4194
  venuefinder ask "something cheaper" --session 3f1c... --price 2
  venuefinder ask "show me everything again" --session 3f1c... --remove price`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			body, err := f.request(cmd, query)
			if err != nil {
				return err
			}

			client := &apiClient{
				baseURL:    strings.TrimRight(f.server, "/"),
				token:      f.token,
				httpClient: &http.Client{Timeout: 60 * time.Second},
			}
			var resp chiTransport.TurnResponseDTO
			if err := client.post(cmd.Context(), "/v1/turns", body, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printTurn(out, resp)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.server, "server", envOr("VENUEFINDER_URL", "http://localhost:8080"), "server base URL")
	fl.StringVar(&f.token, "token", os.Getenv("VENUEFINDER_API_KEY"), "bearer token")
	fl.StringVar(&f.session, "session", "", "session id to continue")
	fl.Float64Var(&f.lat, "lat", 0, "latitude")
	fl.Float64Var(&f.lng, "lng", 0, "longitude")
	fl.StringVar(&f.address, "address", "", "address to geocode instead of --lat/--lng")
	fl.StringVar(&f.cuisine, "cuisine", "", "cuisine filter")
	fl.IntVar(&f.price, "price", 0, "maximum price level (1-4)")
	fl.Float64Var(&f.minRating, "min-rating", 0, "minimum rating (0-5)")
	fl.Float64Var(&f.radius, "radius", 0, "search radius in miles")
	fl.StringSliceVar(&f.dietary, "dietary", nil, "required dietary tags, comma-separated")
	fl.StringVar(&f.sortBy, "sort", "", "sort by rating, distance or price")
	fl.StringVar(&f.remove, "remove", "", "filter field to remove (cuisine, price, rating, radius, dietary, sort)")
	fl.BoolVar(&f.clear, "clear", false, "clear all filters")
	fl.BoolVar(&f.asJSON, "json", false, "print the raw JSON response")
	return cmd
}

// request builds the turn body. Only flags set on the command line become
// preferences, so unset flags never overwrite session filters.
func (f *askFlags) request(cmd *cobra.Command, query string) (chiTransport.TurnRequestDTO, error) {
	changed := cmd.Flags().Changed
	req := chiTransport.TurnRequestDTO{
		SessionID:    f.session,
		Query:        query,
		Address:      f.address,
		ClearFilters: f.clear,
	}

	switch {
	case changed("lat") && changed("lng"):
		req.Location = &chiTransport.LocationDTO{Lat: f.lat, Lng: f.lng}
	case changed("lat") || changed("lng"):
		return req, errors.New("--lat and --lng must be given together")
	}

	var p chiTransport.PreferencesDTO
	set := false
	if changed("cuisine") {
		p.Cuisine, set = &f.cuisine, true
	}
	if changed("price") {
		p.PriceLevel, set = &f.price, true
	}
	if changed("min-rating") {
		p.MinRating, set = &f.minRating, true
	}
	if changed("radius") {
		p.RadiusMiles, set = &f.radius, true
	}
	if changed("dietary") {
		p.Dietary, set = f.dietary, true
	}
	if changed("sort") {
		p.SortBy, set = &f.sortBy, true
	}
	if set {
		req.Preferences = &p
	}

	if f.remove != "" {
		field, tag, _ := strings.Cut(f.remove, ":")
		req.Remove = &chiTransport.RemoveDTO{Field: field, Tag: tag}
	}

	if req.Query == "" && req.Remove == nil && req.Preferences == nil && !req.ClearFilters {
		return req, errors.New("a query or a filter change is required")
	}
	return req, nil
}

func printTurn(w io.Writer, resp chiTransport.TurnResponseDTO) {
	fmt.Fprintf(w, "session: %s\n\n%s\n", resp.SessionID, resp.Response)

	if len(resp.Venues) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tCUISINE\tRATING\tPRICE\tMILES")
		for i, v := range resp.Venues {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%s\t%.1f\n",
				i+1, v.Name, dash(v.CuisineType), v.Rating, priceSymbols(v.PriceLevel), v.DistanceMiles)
		}
		_ = tw.Flush()
	}

	if s := resp.FilterState.Summary; s != "" {
		fmt.Fprintf(w, "\nfilters: %s\n", s)
	}
	for _, warn := range resp.FilterState.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func priceSymbols(level int) string {
	if level <= 0 {
		return "-"
	}
	return strings.Repeat("$", level)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("server not reachable at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr chiTransport.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		msg := fmt.Sprintf("server returned %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			msg += ", retry after " + ra + "s"
		}
		return errors.New(msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
