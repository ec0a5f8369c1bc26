package placecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/db"
	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

// DefaultTTL keeps details and geocodes for a day.
const DefaultTTL = 24 * time.Hour

var cacheKeyPrefix = domain.KeyPrefix + "place:"

// store is the consumer interface for the place cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// provider is the decorated place source.
type provider interface {
	Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error)
	Details(ctx context.Context, id string) (venue.Record, error)
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

// CachedProvider caches Details and Geocode results in a key-value store.
// Search always goes to the provider: results depend on location and radius
// and are already held per session.
type CachedProvider struct {
	inner      provider
	name       string
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. name scopes keys per provider.
// cacheTotal is a counter vec with labels "op" and "result" ("hit"/"miss"), passed explicitly.
func New(
	inner provider,
	name string,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedProvider{
		inner:      inner,
		name:       name,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Search delegates to the inner provider.
func (c *CachedProvider) Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error) {
	return c.inner.Search(ctx, q) //nolint:wrapcheck // transparent decorator
}

// Details returns a cached record or calls the inner provider.
func (c *CachedProvider) Details(ctx context.Context, id string) (venue.Record, error) {
	key := cacheKeyPrefix + c.name + ":details:" + id

	var rec venue.Record
	if c.getFromCache(ctx, "details", key, &rec) {
		return rec, nil
	}

	rec, err := c.inner.Details(ctx, id)
	if err != nil {
		return venue.Record{}, err //nolint:wrapcheck // transparent decorator
	}

	c.putToCache(ctx, key, rec)
	return rec, nil
}

// Geocode returns cached coordinates or calls the inner provider.
func (c *CachedProvider) Geocode(ctx context.Context, address string) (geo.Point, error) {
	key := c.geocodeKey(address)

	var p geo.Point
	if c.getFromCache(ctx, "geocode", key, &p) {
		return p, nil
	}

	p, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return geo.Point{}, err //nolint:wrapcheck // transparent decorator
	}

	c.putToCache(ctx, key, p)
	return p, nil
}

func (c *CachedProvider) geocodeKey(address string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	h := sha256.Sum256([]byte(norm))
	return cacheKeyPrefix + c.name + ":geocode:" + hex.EncodeToString(h[:])
}

func (c *CachedProvider) incCache(op, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(op, result).Inc()
	}
}

func (c *CachedProvider) getFromCache(ctx context.Context, op, key string, out any) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached place data", zap.String("key", key), zap.Error(err))
		}
		c.incCache(op, "miss")
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("Failed to parse cached place data", zap.String("key", key), zap.Error(err))
		c.incCache(op, "miss")
		return false
	}
	c.incCache(op, "hit")
	return true
}

func (c *CachedProvider) putToCache(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Failed to encode place data", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache place data", zap.String("key", key), zap.Error(err))
	}
}
