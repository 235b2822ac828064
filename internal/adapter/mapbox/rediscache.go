package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
)

// kvStore is the minimal key/value surface the shared cache needs. A miss
// is (found=false, nil error); errors are reserved for transport failures.
type kvStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// redisKV adapts a go-redis client to kvStore.
type redisKV struct {
	client *redis.Client
}

// NewRedisKV wraps a redis client for use with NewSharedCachedGeocoder.
func NewRedisKV(client *redis.Client) *redisKV {
	return &redisKV{client: client}
}

func (r *redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// SharedCachedGeocoder layers a shared key/value cache (Redis in
// production) under a geocoder. Cache failures degrade to the inner
// geocoder with a warning; they never fail the lookup.
type SharedCachedGeocoder struct {
	inner   domain.Geocoder
	kv      kvStore
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSharedCachedGeocoder creates the shared cache decorator. Entries
// expire after ttl so stale addresses age out.
func NewSharedCachedGeocoder(inner domain.Geocoder, kv kvStore, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *SharedCachedGeocoder {
	return &SharedCachedGeocoder{
		inner:   inner,
		kv:      kv,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *SharedCachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	return c.lookup(ctx, "forward", "geocode:fwd:"+query, func() (domain.GeocodingResult, error) {
		return c.inner.ForwardGeocode(ctx, query)
	})
}

func (c *SharedCachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("geocode:rev:%.6f,%.6f", lat, lon)
	return c.lookup(ctx, "reverse", key, func() (domain.GeocodingResult, error) {
		return c.inner.ReverseGeocode(ctx, lat, lon)
	})
}

func (c *SharedCachedGeocoder) lookup(ctx context.Context, method, key string, fetch func() (domain.GeocodingResult, error)) (domain.GeocodingResult, error) {
	raw, found, err := c.kv.Get(ctx, key)
	if err != nil {
		c.logger.Warn("geocode cache get failed", "key", key, "error", err)
	} else if found {
		var result domain.GeocodingResult
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
			return result, nil
		}
		c.logger.Warn("geocode cache entry corrupt, refetching", "key", key)
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()

	result, err := fetch()
	if err != nil {
		return result, err
	}

	if !result.IsZero() {
		if encoded, err := json.Marshal(result); err == nil {
			if err := c.kv.Set(ctx, key, string(encoded), c.ttl); err != nil {
				c.logger.Warn("geocode cache set failed", "key", key, "error", err)
			}
		}
	}
	return result, nil
}
