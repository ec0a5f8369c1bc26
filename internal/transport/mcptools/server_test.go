package mcptools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
)

// --- mocks ---

type mockTurns struct {
	got pipeline.TurnRequest
	res pipeline.Result
	err error
}

func (m *mockTurns) Run(_ context.Context, req pipeline.TurnRequest) (pipeline.Result, error) {
	m.got = req
	return m.res, m.err
}

type mockSessions struct {
	sessions map[string]*domsession.Session
}

func (m *mockSessions) Get(_ context.Context, id string) (*domsession.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// --- helpers ---

func newTestDeps() (Deps, *mockTurns, *mockSessions) {
	turns := &mockTurns{res: pipeline.Result{
		SessionID: "s1",
		Text:      "Try Tony's.",
		Venues:    []venue.Record{{ID: "p1", Name: "Tony's"}},
		Filters:   filter.Default(),
	}}
	sessions := &mockSessions{sessions: map[string]*domsession.Session{}}
	return Deps{Turns: turns, Sessions: sessions, Version: "test"}, turns, sessions
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestNewServer_RegistersTools(t *testing.T) {
	deps, _, _ := newTestDeps()
	if NewServer(deps) == nil {
		t.Fatal("expected server")
	}
}

func TestRecommendVenues(t *testing.T) {
	deps, turns, _ := newTestDeps()
	handler := recommendVenues(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recommend_venues", map[string]any{
		"query":       " pizza ",
		"session_id":  "s1",
		"lat":         37.77,
		"lng":         -122.42,
		"price_level": 2,
		"dietary":     []any{"vegetarian"},
		"sort_by":     "rating",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	got := turns.got
	if got.Query != "pizza" || got.SessionID != "s1" || got.Location == nil || got.Location.Lng != -122.42 {
		t.Errorf("turn request = %+v", got)
	}
	p := got.Preferences
	if p == nil || p.PriceLevel == nil || *p.PriceLevel != 2 || len(p.Dietary) != 1 || *p.SortBy != filter.SortRating {
		t.Errorf("preferences = %+v", p)
	}
	if p.MinRating != nil || p.RadiusMiles != nil || p.Cuisine != nil {
		t.Errorf("absent arguments became filters: %+v", p)
	}

	var out turnResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID != "s1" || out.Response != "Try Tony's." || len(out.Venues) != 1 {
		t.Errorf("result = %+v", out)
	}
}

func TestRecommendVenues_NoLocationNoPreferences(t *testing.T) {
	deps, turns, _ := newTestDeps()
	_, _ = recommendVenues(deps)(context.Background(), makeCallToolRequest("recommend_venues", map[string]any{
		"query": "sushi",
		"lat":   1.0,
	}))
	if turns.got.Location != nil {
		t.Error("half a coordinate must not become a location")
	}
	if turns.got.Preferences != nil {
		t.Errorf("preferences = %+v", turns.got.Preferences)
	}
}

func TestRecommendVenues_MissingQuery(t *testing.T) {
	deps, _, _ := newTestDeps()
	result, _ := recommendVenues(deps)(context.Background(), makeCallToolRequest("recommend_venues", map[string]any{}))
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestRecommendVenues_PipelineError(t *testing.T) {
	deps, turns, _ := newTestDeps()
	turns.err = domain.ErrLocationRequired

	result, _ := recommendVenues(deps)(context.Background(), makeCallToolRequest("recommend_venues", map[string]any{
		"query": "pizza",
	}))
	if !result.IsError || !strings.Contains(toolText(t, result), "location required") {
		t.Errorf("result = %+v", result)
	}
}

func TestRemoveFilter(t *testing.T) {
	deps, turns, _ := newTestDeps()
	result, _ := removeFilter(deps)(context.Background(), makeCallToolRequest("remove_filter", map[string]any{
		"session_id": "s1",
		"field":      "dietary",
		"tag":        "vegan",
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if turns.got.Remove == nil || turns.got.Remove.Field != filter.FieldDietary || turns.got.Remove.Tag != "vegan" {
		t.Errorf("remove = %+v", turns.got.Remove)
	}
	if turns.got.SessionID != "s1" {
		t.Errorf("session = %q", turns.got.SessionID)
	}
	if turns.got.Query != "" {
		t.Errorf("removal must not carry search text, got %q", turns.got.Query)
	}
}

func TestRemoveFilter_UnknownField(t *testing.T) {
	deps, turns, _ := newTestDeps()
	result, _ := removeFilter(deps)(context.Background(), makeCallToolRequest("remove_filter", map[string]any{
		"session_id": "s1",
		"field":      "vibe",
	}))
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if turns.got.SessionID != "" {
		t.Error("pipeline must not run for an unknown field")
	}
}

func TestGetSessionVenues(t *testing.T) {
	deps, _, sessions := newTestDeps()
	s := domsession.New("s1", time.Now())
	s.Venues.Add(venue.Record{ID: "a", Name: "A"}, venue.Record{ID: "b", Name: "B"}, venue.Record{ID: "a", Name: "A"})
	sessions.sessions["s1"] = s

	result, _ := getSessionVenues(deps)(context.Background(), makeCallToolRequest("get_session_venues", map[string]any{
		"session_id": "s1",
	}))
	var venues []venue.Record
	if err := json.Unmarshal([]byte(toolText(t, result)), &venues); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(venues) != 2 {
		t.Errorf("venues = %d, want 2", len(venues))
	}

	missing, _ := getSessionVenues(deps)(context.Background(), makeCallToolRequest("get_session_venues", map[string]any{
		"session_id": "nope",
	}))
	if !missing.IsError || !strings.Contains(toolText(t, missing), domain.ErrSessionNotFound.Error()) {
		t.Errorf("result = %+v", missing)
	}
}
