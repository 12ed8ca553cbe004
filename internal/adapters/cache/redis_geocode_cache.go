package cache

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/obs"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "addris:geocode:"

// RedisGeocodeCache stores geocode results as JSON values with a TTL.
type RedisGeocodeCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisGeocodeCache(client *redis.Client, ttl time.Duration) *RedisGeocodeCache {
	return &RedisGeocodeCache{Client: client, TTL: ttl}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

type redisEntry struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Label    string  `json:"label"`
	Tier     string  `json:"tier"`
	Score    float64 `json:"score"`
	Provider string  `json:"provider"`
}

func (c *RedisGeocodeCache) Get(ctx context.Context, query string) (_ domain.GeocodeResult, _ bool, err error) {
	defer obs.Time(ctx, "geocode.redis.Get")(&err)

	query = strings.TrimSpace(query)
	if query == "" {
		return domain.GeocodeResult{}, false, nil
	}

	b, err := c.Client.Get(ctx, redisKeyPrefix+query).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GeocodeResult{}, false, nil
	}
	if err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("redis geocode get: %w", err)
	}

	var e redisEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("redis geocode decode: %w", err)
	}

	return domain.GeocodeResult{
		Latitude:  e.Lat,
		Longitude: e.Lon,
		Label:     e.Label,
		Quality:   domain.MatchQuality{Tier: domain.MatchTier(e.Tier), Score: e.Score},
		Provider:  e.Provider,
	}, true, nil
}

func (c *RedisGeocodeCache) Put(ctx context.Context, query string, r domain.GeocodeResult) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return errors.New("redis geocode put: empty query key")
	}

	b, err := json.Marshal(redisEntry{
		Lat:      r.Latitude,
		Lon:      r.Longitude,
		Label:    r.Label,
		Tier:     string(r.Quality.Tier),
		Score:    r.Quality.Score,
		Provider: r.Provider,
	})
	if err != nil {
		return fmt.Errorf("redis geocode encode: %w", err)
	}

	if err := c.Client.Set(ctx, redisKeyPrefix+query, b, c.TTL).Err(); err != nil {
		return fmt.Errorf("redis geocode set: %w", err)
	}
	return nil
}
