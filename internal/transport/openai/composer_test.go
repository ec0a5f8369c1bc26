package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
	}
}

func sampleInput(turns int) conversation.ComposeInput {
	history := make([]conversation.Turn, turns)
	for i := range history {
		history[i] = conversation.Turn{Role: conversation.RoleUser, Text: "turn"}
		if i%2 == 1 {
			history[i].Role = conversation.RoleAssistant
		}
	}
	price := 2
	return conversation.ComposeInput{
		Query:   "something cheaper",
		History: history,
		Venues: []venue.Record{
			{Name: "Tony's", CuisineType: "pizza", Rating: 4.6, PriceLevel: 2, DistanceMiles: 0.8},
			{Name: "Golden Boy", CuisineType: "pizza", Rating: 4.4, PriceLevel: 1, DistanceMiles: 1.2, Dietary: []string{"vegetarian"}},
		},
		Filters: filter.State{PriceLevel: &price, RadiusMiles: 5},
	}
}

func newTestComposer(url, model string) *Composer {
	return NewComposer(&Config{APIKey: "test-key", BaseURL: url, Model: model, Logger: zap.NewNop()})
}

func TestComposer_Compose(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("  Tony's is a great pick.  "))
	}))
	defer server.Close()

	c := newTestComposer(server.URL, "compose-model")
	text, err := c.Compose(context.Background(), sampleInput(14))
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if text != "Tony's is a great pick." {
		t.Errorf("text = %q", text)
	}

	if got.Model != "compose-model" || got.Temperature != DefaultTemperature {
		t.Errorf("model=%q temperature=%v", got.Model, got.Temperature)
	}
	// system + last 10 history turns + current turn
	if len(got.Messages) != 12 {
		t.Fatalf("messages = %d, want 12", len(got.Messages))
	}
	if got.Messages[0].Role != "system" {
		t.Errorf("first message role = %q", got.Messages[0].Role)
	}
	last := got.Messages[len(got.Messages)-1].Content
	for _, want := range []string{"something cheaper", "1. Tony's | pizza | 4.6 stars | $$ | 0.8 mi", "Golden Boy", "vegetarian", "$$"} {
		if !strings.Contains(last, want) {
			t.Errorf("current turn missing %q:\n%s", want, last)
		}
	}

	if v := testutil.ToFloat64(metrics.LLMTokensTotal.WithLabelValues("compose-model", "completion")); v != 30 {
		t.Errorf("completion tokens metric = %v, want 30", v)
	}
}

func TestComposer_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("   "))
	}))
	defer server.Close()

	_, err := newTestComposer(server.URL, "m").Compose(context.Background(), sampleInput(0))
	if !errors.Is(err, domain.ErrLanguageModel) {
		t.Fatalf("expected ErrLanguageModel, got %v", err)
	}
}

type fakeBudget struct {
	err      error
	recorded int64
}

func (b *fakeBudget) Check(context.Context) error { return b.err }
func (b *fakeBudget) Record(tokens int64)       { b.recorded += tokens }

func TestComposer_Budget(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("ok"))
	}))
	defer server.Close()

	b := &fakeBudget{}
	c := NewComposer(&Config{APIKey: "k", BaseURL: server.URL, Model: "budget-model", Budget: b})
	if _, err := c.Compose(context.Background(), sampleInput(0)); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if b.recorded != 150 {
		t.Errorf("recorded %d tokens, want 150", b.recorded)
	}

	b.err = domain.ErrBudgetExceeded
	_, err := c.Compose(context.Background(), sampleInput(0))
	if !errors.Is(err, domain.ErrLanguageModel) || !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected language model budget error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("exhausted budget must not reach the API, calls = %d", calls)
	}
	if v := testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues("budget-model", "budget")); v != 1 {
		t.Errorf("budget rejection metric = %v, want 1", v)
	}
}

func TestComposer_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"openai error", http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"requests"}}`, "rate limited"},
		{"detail body", http.StatusBadRequest, `{"detail":"model not found"}`, "model not found"},
		{"plain body", http.StatusBadGateway, `upstream down`, "502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestComposer(server.URL, "m").Compose(context.Background(), sampleInput(0))
			if !errors.Is(err, domain.ErrLanguageModel) {
				t.Fatalf("expected ErrLanguageModel, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestComposer_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	if err := newTestComposer(server.URL, "m").HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestStaticComposer(t *testing.T) {
	text, err := StaticComposer{}.Compose(context.Background(), sampleInput(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Tony's, Golden Boy") || !strings.Contains(text, "$$") {
		t.Errorf("text = %q", text)
	}

	empty, _ := StaticComposer{}.Compose(context.Background(), conversation.ComposeInput{})
	if empty != conversation.FallbackText {
		t.Errorf("empty text = %q", empty)
	}
}
