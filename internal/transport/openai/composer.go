// Package openai writes assistant responses through an OpenAI-compatible
// chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
)

// Defaults.
const (
	DefaultModel        = "gpt-4o-mini"
	DefaultTemperature  = 0.3
	DefaultHistoryTurns = 10
	DefaultMaxTokens    = 400
)

const systemPrompt = `You are a friendly local dining guide. You receive the user's latest message,
the recent conversation, the active filters and a ranked list of venues that
already satisfy those filters. Reply in two to four sentences: acknowledge what
changed, highlight the best one or two options by name with a concrete reason
(rating, price, distance, dietary fit), and invite a follow-up refinement.
Only mention venues from the list. Do not invent hours, menus or prices.`

// TokenBudget gates requests on token spend. Check runs before each request,
// Record after each completion.
type TokenBudget interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// Composer is a language model backed by chat completions.
type Composer struct {
	client       *openai.Client
	budget       TokenBudget
	model        string
	temperature  float32
	maxTokens    int
	historyTurns int
	logger       *zap.Logger
}

// Config holds the language model settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	MaxTokens    int
	HistoryTurns int
	// Budget is optional.
	Budget TokenBudget
	Logger *zap.Logger
}

// NewComposer creates an OpenAI-compatible composer.
func NewComposer(cfg *Config) *Composer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := &Composer{
		client:       openai.NewClientWithConfig(clientCfg),
		budget:       cfg.Budget,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		historyTurns: cfg.HistoryTurns,
		logger:       cfg.Logger,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.temperature <= 0 {
		c.temperature = DefaultTemperature
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.historyTurns <= 0 {
		c.historyTurns = DefaultHistoryTurns
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Compose returns the assistant text for one turn.
func (c *Composer) Compose(ctx context.Context, in conversation.ComposeInput) (string, error) {
	if c.budget != nil {
		if err := c.budget.Check(ctx); err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(c.model, "budget").Inc()
			return "", fmt.Errorf("%w: %w", domain.ErrLanguageModel, err)
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.messages(in),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", parseAPIError(err)
	}
	if c.budget != nil {
		c.budget.Record(int64(resp.Usage.TotalTokens))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "empty").Inc()
		return "", fmt.Errorf("empty completion: %w", domain.ErrLanguageModel)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Composer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Composer) messages(in conversation.ComposeInput) []openai.ChatCompletionMessage {
	history := conversation.Tail(in.History, c.historyTurns)
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})

	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		if t.Text == "" {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}

	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: renderTurn(in),
	})
	return msgs
}

// renderTurn puts the latest message, the filters and the ranked venues into
// a single user message.
func renderTurn(in conversation.ComposeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n", strings.TrimSpace(in.Query))
	fmt.Fprintf(&b, "Active filters: %s\n", in.Filters.Summary())
	b.WriteString("Venues:\n")
	for i, v := range in.Venues {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describe(v))
	}
	return b.String()
}

func describe(v venue.Record) string {
	parts := []string{v.Name}
	if v.CuisineType != "" {
		parts = append(parts, v.CuisineType)
	}
	parts = append(parts, fmt.Sprintf("%.1f stars", v.Rating))
	if v.HasPrice() {
		parts = append(parts, strings.Repeat("$", v.PriceLevel))
	}
	parts = append(parts, fmt.Sprintf("%.1f mi", v.DistanceMiles))
	if len(v.Dietary) > 0 {
		parts = append(parts, strings.Join(v.Dietary, "/"))
	}
	if v.ReviewSummary != "" {
		parts = append(parts, v.ReviewSummary)
	}
	return strings.Join(parts, " | ")
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrLanguageModel.
func parseAPIError(err error) error {
	wrap := domain.ErrLanguageModel

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("chat completion: %w: %w", wrap, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("chat API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("chat API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("chat request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
