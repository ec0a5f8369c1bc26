// Package mcptools exposes the venue pipeline as Model Context Protocol tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
)

// TurnRunner executes conversational turns.
type TurnRunner interface {
	Run(ctx context.Context, req pipeline.TurnRequest) (pipeline.Result, error)
}

// SessionReader reads committed sessions.
type SessionReader interface {
	Get(ctx context.Context, id string) (*domsession.Session, error)
}

// Deps holds dependencies for the MCP server.
type Deps struct {
	Turns    TurnRunner
	Sessions SessionReader
	Version  string
}

// turnResult is the JSON payload returned by turn tools.
type turnResult struct {
	SessionID string         `json:"session_id"`
	Response  string         `json:"response"`
	Venues    []venue.Record `json:"venues"`
	Filters   filter.State   `json:"filters"`
	Summary   string         `json:"summary"`
	Warnings  []string       `json:"warnings,omitempty"`
	Fetched   bool           `json:"fetched"`
}

// NewServer creates an MCP server with the venue tools registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"venuefinder",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("venuefinder: conversational restaurant search. Keep the session_id from each "+
			"result and pass it back to refine the same search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recommend_venues",
			mcp.WithDescription("Find or refine restaurant recommendations. Filters accumulate across calls "+
				"with the same session_id."),
			mcp.WithString("query", mcp.Description("What the user is looking for, e.g. \"pizza\""), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to continue; omit to start a new one")),
			mcp.WithNumber("lat", mcp.Description("Latitude of the search center")),
			mcp.WithNumber("lng", mcp.Description("Longitude of the search center")),
			mcp.WithString("address", mcp.Description("Address to search around when no coordinates are given")),
			mcp.WithString("cuisine", mcp.Description("Cuisine filter")),
			mcp.WithNumber("price_level", mcp.Description("Maximum price level, 1 ($) to 4 ($$$$)")),
			mcp.WithNumber("min_rating", mcp.Description("Minimum rating, 0 to 5")),
			mcp.WithNumber("radius_miles", mcp.Description("Search radius in miles, 1 to 25")),
			mcp.WithArray("dietary", mcp.Description("Dietary requirements, e.g. vegetarian"), mcp.WithStringItems()),
			mcp.WithString("sort_by", mcp.Description("relevance, rating, distance or price")),
		),
		recommendVenues(deps),
	)

	s.AddTool(
		mcp.NewTool("remove_filter",
			mcp.WithDescription("Remove one filter from a session and re-rank its cached results."),
			mcp.WithString("session_id", mcp.Description("Session to modify"), mcp.Required()),
			mcp.WithString("field", mcp.Description("cuisine, price_level, min_rating, radius, dietary or sort_by"),
				mcp.Required()),
			mcp.WithString("tag", mcp.Description("For dietary: remove only this tag")),
		),
		removeFilter(deps),
	)

	s.AddTool(
		mcp.NewTool("get_session_venues",
			mcp.WithDescription("List every distinct venue shown in a session, for map display."),
			mcp.WithString("session_id", mcp.Description("Session to read"), mcp.Required()),
		),
		getSessionVenues(deps),
	)

	return s
}

func recommendVenues(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		turn := pipeline.TurnRequest{
			SessionID: req.GetString("session_id", ""),
			Query:     strings.TrimSpace(query),
			Address:   req.GetString("address", ""),
		}
		args := req.GetArguments()
		_, hasLat := args["lat"]
		_, hasLng := args["lng"]
		if hasLat && hasLng {
			turn.Location = &geo.Point{Lat: req.GetFloat("lat", 0), Lng: req.GetFloat("lng", 0)}
		}
		if prefs := preferencesFrom(req); !prefs.IsEmpty() {
			turn.Preferences = prefs
		}

		return runTurn(ctx, deps, turn), nil
	}
}

func removeFilter(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		name, err := req.RequireString("field")
		if err != nil {
			return mcpError("field is required"), nil
		}
		field, ok := filter.ParseField(name)
		if !ok {
			return mcpError(fmt.Sprintf("unknown filter field %q", name)), nil
		}

		// No query: the turn inherits the session's intent, so cached
		// candidates are re-ranked instead of refetched.
		return runTurn(ctx, deps, pipeline.TurnRequest{
			SessionID: sessionID,
			Remove:    &filter.Removal{Field: field, Tag: req.GetString("tag", "")},
		}), nil
	}
}

func getSessionVenues(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		sess, err := deps.Sessions.Get(ctx, sessionID)
		if err != nil {
			return mcpError(fmt.Sprintf("get session: %v", err)), nil
		}
		venues := sess.Venues.Records()
		if venues == nil {
			venues = []venue.Record{}
		}
		return mcpJSON(venues), nil
	}
}

func preferencesFrom(req mcp.CallToolRequest) *filter.Preferences {
	args := req.GetArguments()
	p := &filter.Preferences{}
	if v := strings.TrimSpace(req.GetString("cuisine", "")); v != "" {
		p.Cuisine = &v
	}
	if _, ok := args["price_level"]; ok {
		v := req.GetInt("price_level", 0)
		p.PriceLevel = &v
	}
	if _, ok := args["min_rating"]; ok {
		v := req.GetFloat("min_rating", 0)
		p.MinRating = &v
	}
	if _, ok := args["radius_miles"]; ok {
		v := req.GetFloat("radius_miles", 0)
		p.RadiusMiles = &v
	}
	p.Dietary = req.GetStringSlice("dietary", nil)
	if v := req.GetString("sort_by", ""); v != "" {
		sb, ok := filter.ParseSortBy(v)
		if !ok {
			sb = filter.SortBy(v)
		}
		p.SortBy = &sb
	}
	return p
}

func runTurn(ctx context.Context, deps Deps, turn pipeline.TurnRequest) *mcp.CallToolResult {
	res, err := deps.Turns.Run(ctx, turn)
	if err != nil {
		return mcpError(fmt.Sprintf("turn failed: %v", err))
	}
	venues := res.Venues
	if venues == nil {
		venues = []venue.Record{}
	}
	return mcpJSON(turnResult{
		SessionID: res.SessionID,
		Response:  res.Text,
		Venues:    venues,
		Filters:   res.Filters,
		Summary:   res.FilterSummary,
		Warnings:  res.Warnings,
		Fetched:   res.Fetched,
	})
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
