// Package ranking filters candidate venues against a filter state and orders
// them by relevance or by an explicit sort field.
package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/venuefinder/internal/domain/candidate"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// DefaultLimit caps the ranked list returned to the caller.
const DefaultLimit = 5

// Weights of the composite relevance score. They should sum to 1.
type Weights struct {
	Text      float64 `json:"text"`
	Rating    float64 `json:"rating"`
	Proximity float64 `json:"proximity"`
}

// DefaultWeights favors text match, then rating, then proximity.
var DefaultWeights = Weights{Text: 0.5, Rating: 0.3, Proximity: 0.2}

// Scored is a candidate that passed the filter, with its relevance score.
type Scored struct {
	Record venue.Record `json:"record"`
	Score  float64      `json:"score"`
}

// Engine applies filters and ranking. The zero value uses the defaults.
type Engine struct {
	Weights Weights
	Limit   int
}

// New creates an engine. Zero weights or limit fall back to the defaults.
func New(w Weights, limit int) *Engine {
	if w == (Weights{}) {
		w = DefaultWeights
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Engine{Weights: w, Limit: limit}
}

// Apply returns at most Limit candidates matching st, best first.
// The input slice is never modified.
func (e *Engine) Apply(candidates []venue.Record, st filter.State, query string) []venue.Record {
	scored := e.Scored(candidates, st, query)
	out := make([]venue.Record, len(scored))
	for i, s := range scored {
		out[i] = s.Record
	}
	return out
}

// Scored is Apply with the relevance score of every returned record.
func (e *Engine) Scored(candidates []venue.Record, st filter.State, query string) []Scored {
	radius := st.RadiusMiles
	if radius <= 0 {
		radius = filter.DefaultRadiusMiles
	}
	tokens := candidate.IntentTokens(query)

	matched := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if !Matches(c, st) {
			continue
		}
		matched = append(matched, Scored{
			Record: c.Clone(),
			Score:  e.score(c, tokens, radius),
		})
	}

	slices.SortStableFunc(matched, compareFor(st.SortBy))

	if limit := e.limit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

func (e *Engine) limit() int {
	if e.Limit <= 0 {
		return DefaultLimit
	}
	return e.Limit
}

func (e *Engine) weights() Weights {
	if e.Weights == (Weights{}) {
		return DefaultWeights
	}
	return e.Weights
}

// Matches reports whether r satisfies every active filter. Unknown price or
// dietary data never satisfies a filter on that field.
func Matches(r venue.Record, st filter.State) bool {
	if st.Cuisine != nil && !strings.EqualFold(strings.TrimSpace(r.CuisineType), strings.TrimSpace(*st.Cuisine)) {
		return false
	}
	if st.PriceLevel != nil && (!r.HasPrice() || r.PriceLevel > *st.PriceLevel) {
		return false
	}
	if st.MinRating != nil && r.Rating < *st.MinRating {
		return false
	}
	radius := st.RadiusMiles
	if radius <= 0 {
		radius = filter.DefaultRadiusMiles
	}
	if r.DistanceMiles > radius {
		return false
	}
	for _, tag := range st.Dietary {
		if !r.HasDietary(tag) {
			return false
		}
	}
	return true
}

func (e *Engine) score(r venue.Record, tokens []string, radius float64) float64 {
	w := e.weights()
	proximity := 1 - r.DistanceMiles/radius
	proximity = min(max(proximity, 0), 1)
	rating := min(max(r.Rating/5, 0), 1)
	return w.Text*textMatch(r, tokens) + w.Rating*rating + w.Proximity*proximity
}

// textMatch is the fraction of query tokens found in the record's name,
// cuisine or description. An empty query scores 0 for every record.
func textMatch(r venue.Record, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	haystack := make(map[string]struct{})
	for _, field := range []string{r.Name, r.CuisineType, r.Description} {
		for _, t := range candidate.IntentTokens(field) {
			haystack[t] = struct{}{}
		}
	}
	hits := 0
	for _, t := range tokens {
		if _, ok := haystack[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// compareFor orders by the explicit field, then by score, then by identity.
func compareFor(sortBy filter.SortBy) func(a, b Scored) int {
	byField := func(a, b Scored) int { return 0 }
	switch sortBy {
	case filter.SortRating:
		byField = func(a, b Scored) int { return cmp.Compare(b.Record.Rating, a.Record.Rating) }
	case filter.SortDistance:
		byField = func(a, b Scored) int { return cmp.Compare(a.Record.DistanceMiles, b.Record.DistanceMiles) }
	case filter.SortPrice:
		byField = func(a, b Scored) int { return cmp.Compare(priceKey(a.Record), priceKey(b.Record)) }
	}
	return func(a, b Scored) int {
		if c := byField(a, b); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Record.Identity(), b.Record.Identity())
	}
}

// priceKey sorts unknown prices after every known level.
func priceKey(r venue.Record) int {
	if !r.HasPrice() {
		return 5
	}
	return r.PriceLevel
}
