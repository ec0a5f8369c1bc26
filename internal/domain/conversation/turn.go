// Package conversation holds the turn history shared by the session store and the language model.
package conversation

import (
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// Role identifies who produced a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a session.
type Turn struct {
	Role   Role           `json:"role"`
	Text   string         `json:"text"`
	Venues []venue.Record `json:"venues,omitempty"`
	At     time.Time      `json:"at"`
}

// ComposeInput is everything the language model sees for one response.
type ComposeInput struct {
	Query   string
	History []Turn
	Venues  []venue.Record
	Filters filter.State
}

// FallbackText is returned when the language model fails.
const FallbackText = "Here are the results I found:"

// Tail returns at most the last n turns.
func Tail(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
