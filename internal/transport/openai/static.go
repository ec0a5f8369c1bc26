package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
)

// StaticComposer renders a deterministic response without a language model.
// It is used when no API key is configured.
type StaticComposer struct{}

// Compose lists the top venues in one sentence.
func (StaticComposer) Compose(_ context.Context, in conversation.ComposeInput) (string, error) {
	if len(in.Venues) == 0 {
		return conversation.FallbackText, nil
	}
	names := make([]string, 0, 3)
	for _, v := range in.Venues[:min(3, len(in.Venues))] {
		names = append(names, v.Name)
	}
	text := fmt.Sprintf("I found %d places. Top picks: %s.", len(in.Venues), strings.Join(names, ", "))
	if in.Filters.ActiveCount() > 0 || in.Filters.SortBy.Explicit() {
		text += " Filters: " + in.Filters.Summary() + "."
	}
	return text, nil
}

// HealthCheck always succeeds.
func (StaticComposer) HealthCheck(context.Context) error { return nil }
