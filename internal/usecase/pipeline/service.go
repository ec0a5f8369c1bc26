// Package pipeline runs one conversational turn: merge filters, decide on
// the candidate cache, fetch, rank, compose and commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/candidate"
	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
	"github.com/kailas-cloud/venuefinder/internal/domain/filter"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	logpkg "github.com/kailas-cloud/venuefinder/internal/logger"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
)

// Defaults.
const (
	DefaultFetchLimit        = 20
	DefaultEnrichTopN        = 8
	DefaultEnrichConcurrency = 4
	DefaultTimeout           = 30 * time.Second
	// TimeoutRetryAfter is the hint returned with a pipeline timeout.
	TimeoutRetryAfter = 2 * time.Second
)

// Response texts used when the language model is not consulted.
const (
	unavailableText = "I'm having trouble reaching the places service right now, so I have no new results. Please try again in a moment."
	noResultsText   = "I couldn't find any places for that request nearby."
)

// Turn outcomes reported in metrics.
const (
	outcomeCommitted    = "committed"
	outcomeNoCandidates = "no_candidates"
	outcomeDegraded     = "degraded"
	outcomeBusy         = "busy"
	outcomeTimeout      = "timeout"
	outcomeFailed       = "failed"
)

// Options tunes the pipeline.
type Options struct {
	FetchLimit        int
	EnrichTopN        int
	EnrichConcurrency int
	Timeout           time.Duration
	Policy            candidate.Policy
}

func (o *Options) applyDefaults() {
	if o.FetchLimit <= 0 {
		o.FetchLimit = DefaultFetchLimit
	}
	if o.EnrichTopN < 0 {
		o.EnrichTopN = 0
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = DefaultEnrichConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Policy == (candidate.Policy{}) {
		o.Policy = candidate.DefaultPolicy()
	}
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	o := Options{EnrichTopN: DefaultEnrichTopN}
	o.applyDefaults()
	return o
}

// TurnRequest is one user utterance with its structured directive.
type TurnRequest struct {
	SessionID    string
	Query        string
	Location     *geo.Point
	Address      string
	Preferences  *filter.Preferences
	Remove       *filter.Removal
	ClearFilters bool
}

// Result is what the caller sees after a committed turn.
type Result struct {
	SessionID     string           `json:"session_id"`
	Text          string           `json:"response"`
	Venues        []venue.Record   `json:"venues"`
	Filters       filter.State     `json:"filters"`
	FilterSummary string           `json:"summary"`
	Warnings      []string         `json:"warnings,omitempty"`
	Fetched       bool             `json:"fetched"`
	Reason        candidate.Reason `json:"cache_reason"`
}

// Service orchestrates turns.
type Service struct {
	places   PlaceProvider
	sessions SessionStore
	composer Composer
	ranker   Ranker
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a pipeline service.
func New(
	places PlaceProvider, sessions SessionStore, composer Composer, ranker Ranker,
	opts Options, logger *zap.Logger,
) *Service {
	opts.applyDefaults()
	return &Service{
		places:   places,
		sessions: sessions,
		composer: composer,
		ranker:   ranker,
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

// Run executes one turn under the session lock. On any error the session is
// left exactly as it was.
func (s *Service) Run(ctx context.Context, req TurnRequest) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var (
		res     Result
		outcome string
	)
	id, err := s.sessions.WithSession(ctx, req.SessionID, func(w *domsession.Session) error {
		r, o, err := s.turn(ctx, w, req)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		res, outcome = r, o
		return nil
	})
	if err != nil {
		return Result{}, s.failure(ctx, err)
	}

	res.SessionID = id
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	return res, nil
}

func (s *Service) failure(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionLockTimeout):
		metrics.TurnsTotal.WithLabelValues(outcomeBusy).Inc()
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		metrics.TurnsTotal.WithLabelValues(outcomeTimeout).Inc()
		s.logger.Warn("Turn deadline exceeded", zap.Duration("timeout", s.opts.Timeout), zap.Error(err))
		return domain.NewRetryable(fmt.Errorf("%w: %w", domain.ErrPipelineTimeout, err), TimeoutRetryAfter)
	default:
		metrics.TurnsTotal.WithLabelValues(outcomeFailed).Inc()
		return err
	}
}

// turn runs every stage on the working copy w.
func (s *Service) turn(ctx context.Context, w *domsession.Session, req TurnRequest) (Result, string, error) {
	ctx, log := logpkg.WithFields(ctx, s.logger, zap.String("session_id", w.ID))
	var warnings []string

	// MergeFilters
	d := filter.Directive{Set: req.Preferences, Remove: req.Remove, ClearAll: req.ClearFilters}
	if err := d.Validate(); err != nil {
		log.Warn("Ignoring invalid filter directive", zap.Error(err))
		warnings = append(warnings, "Ignored invalid filter: "+strings.TrimPrefix(err.Error(), domain.ErrInvalidDirective.Error()+": "))
		d = filter.Directive{}
	}
	next, changes := filter.Merge(w.Filters, d)

	loc, err := s.resolveLocation(ctx, w, req)
	if err != nil {
		return Result{}, "", err
	}

	// DecideFetch
	now := s.now()
	dec := candidate.Decide(w.Cache, candidate.Params{
		Query:       req.Query,
		Location:    loc,
		RadiusMiles: next.RadiusMiles,
		Now:         now,
	}, changes, s.opts.Policy)
	metrics.FetchDecisionsTotal.WithLabelValues(string(dec.Reason)).Inc()
	log.Debug("Fetch decision",
		zap.String("reason", string(dec.Reason)),
		zap.Stringer("changes", changes),
		zap.String("query", dec.EffectiveQuery),
	)

	cache := w.Cache
	outcome := outcomeCommitted
	var candidates []venue.Record
	fetched := false

	if dec.Reuse {
		candidates = cache.Snapshot()
	} else {
		records, err := s.fetch(ctx, searchText(dec.EffectiveQuery, next), loc, next.RadiusMiles)
		switch {
		case err == nil:
			fetched = true
			cache = &candidate.Cache{
				Records:     records,
				Query:       dec.EffectiveQuery,
				Location:    loc,
				RadiusMiles: next.RadiusMiles,
				FetchedAt:   now,
			}
			candidates = cache.Snapshot()
		case ctx.Err() != nil:
			return Result{}, "", ctx.Err()
		default:
			log.Warn("Place provider failed, returning no new results", zap.Error(err))
			outcome = outcomeDegraded
		}
	}

	// Filter
	start := time.Now()
	ranked := s.ranker.Apply(candidates, next, dec.EffectiveQuery)
	observe("filter", start)

	// Compose
	var text string
	switch {
	case outcome == outcomeDegraded:
		text = unavailableText
	case len(candidates) == 0:
		outcome = outcomeNoCandidates
		text = noResultsText
	case len(ranked) == 0:
		outcome = outcomeNoCandidates
		text = filteredOutText(len(candidates), next)
	default:
		text = s.compose(ctx, log, conversation.ComposeInput{
			Query:   utterance(req),
			History: w.Turns,
			Venues:  ranked,
			Filters: next,
		})
	}
	warnings = append(warnings, next.Warnings()...)

	// Commit
	w.AppendTurn(conversation.RoleUser, utterance(req), nil, now)
	w.AppendTurn(conversation.RoleAssistant, text, ranked, now)
	w.Venues.Add(ranked...)
	w.Filters = next
	w.Preferences = filter.Remember(w.Preferences, d)
	w.Location = &loc
	if dec.EffectiveQuery != "" {
		w.Query = dec.EffectiveQuery
	}
	w.Cache = cache

	return Result{
		Text:          text,
		Venues:        ranked,
		Filters:       next,
		FilterSummary: next.Summary(),
		Warnings:      warnings,
		Fetched:       fetched,
		Reason:        dec.Reason,
	}, outcome, nil
}

// resolveLocation prefers an explicit point, then a geocoded address, then
// the session's last location.
func (s *Service) resolveLocation(ctx context.Context, w *domsession.Session, req TurnRequest) (geo.Point, error) {
	if req.Location != nil {
		if !req.Location.Valid() {
			return geo.Point{}, fmt.Errorf("%w: coordinates out of range", domain.ErrLocationRequired)
		}
		return *req.Location, nil
	}
	if addr := strings.TrimSpace(req.Address); addr != "" {
		start := time.Now()
		p, err := s.places.Geocode(ctx, addr)
		observe("geocode", start)
		if errors.Is(err, domain.ErrNotFound) {
			return geo.Point{}, fmt.Errorf("%w: address %q not found", domain.ErrLocationRequired, addr)
		}
		if err != nil {
			return geo.Point{}, fmt.Errorf("geocode: %w", err)
		}
		return p, nil
	}
	if w.Location != nil {
		return *w.Location, nil
	}
	return geo.Point{}, domain.ErrLocationRequired
}

// fetch searches and enriches the top candidates. Enrichment failures keep
// the plain record.
func (s *Service) fetch(ctx context.Context, text string, loc geo.Point, radius float64) ([]venue.Record, error) {
	start := time.Now()
	records, err := s.places.Search(ctx, venue.SearchQuery{
		Text:        text,
		Location:    loc,
		RadiusMiles: radius,
		Limit:       s.opts.FetchLimit,
	})
	observe("search", start)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	// Providers can list one place twice; keep its first rank.
	if unique := venue.NewSet(records...); unique.Len() < len(records) {
		logpkg.FromContextOr(ctx, s.logger).Debug("Dropped duplicate search results",
			zap.Int("returned", len(records)),
			zap.Int("unique", unique.Len()),
		)
		records = unique.Records()
	}

	start = time.Now()
	s.enrich(ctx, records)
	observe("enrich", start)
	return records, nil
}

func (s *Service) enrich(ctx context.Context, records []venue.Record) {
	n := min(s.opts.EnrichTopN, len(records))
	if n == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(s.opts.EnrichConcurrency)
	for i := range n {
		if records[i].ID == "" || records[i].Enriched {
			continue
		}
		g.Go(func() error {
			detail, err := s.places.Details(ctx, records[i].ID)
			if err != nil {
				logpkg.FromContextOr(ctx, s.logger).Debug("Enrichment failed",
					zap.String("place_id", records[i].ID),
					zap.Error(err),
				)
				return nil
			}
			records[i] = records[i].Merge(detail)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) compose(ctx context.Context, log *zap.Logger, in conversation.ComposeInput) string {
	start := time.Now()
	text, err := s.composer.Compose(ctx, in)
	observe("compose", start)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Warn("Composer failed, using fallback text", zap.Error(err))
		return conversation.FallbackText
	}
	return text
}

// utterance is the user's message for the transcript. A directive-only turn
// is described by its directive.
func utterance(req TurnRequest) string {
	if q := strings.TrimSpace(req.Query); q != "" {
		return q
	}
	switch {
	case req.ClearFilters:
		return "Clear all filters"
	case req.Remove != nil && req.Remove.Tag != "":
		return fmt.Sprintf("Remove the %s %s filter", req.Remove.Tag, req.Remove.Field)
	case req.Remove != nil:
		return fmt.Sprintf("Remove the %s filter", req.Remove.Field)
	case req.Preferences != nil:
		return "Update my filters"
	}
	return ""
}

// searchText falls back to the cuisine filter when the conversation has no
// intent yet.
func searchText(query string, st filter.State) string {
	if strings.TrimSpace(query) != "" {
		return query
	}
	if st.Cuisine != nil {
		return *st.Cuisine + " restaurant"
	}
	return "restaurant"
}

func filteredOutText(found int, st filter.State) string {
	return fmt.Sprintf(
		"I found %d places, but none match your current filters (%s). Try relaxing one of them.",
		found, st.Summary(),
	)
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
