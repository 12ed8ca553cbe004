package cache

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/db"
	"addris-route-service/internal/platform/obs"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLGeocodeCache is a SQL-backed cache mapping normalized queries to
// geocode results. Entries older than TTL are ignored; zero TTL never expires.
type SQLGeocodeCache struct {
	DB      *sql.DB
	Dialect db.Dialect
	TTL     time.Duration

	now func() time.Time
}

func NewSQLGeocodeCache(conn *sql.DB, dialect db.Dialect, ttl time.Duration) *SQLGeocodeCache {
	return &SQLGeocodeCache{DB: conn, Dialect: dialectOf(dialect), TTL: ttl, now: time.Now}
}

func (s *SQLGeocodeCache) Get(ctx context.Context, query string) (_ domain.GeocodeResult, _ bool, err error) {
	defer obs.Time(ctx, "geocode.cache.Get")(&err)

	if s.DB == nil {
		return domain.GeocodeResult{}, false, errors.New("geocode cache: db is nil")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return domain.GeocodeResult{}, false, nil
	}

	var minCreated int64
	if s.TTL > 0 {
		minCreated = s.clock().Add(-s.TTL).Unix()
	}

	q := s.Dialect.Rebind(`
	SELECT lat, lon, label, tier, score, provider
	FROM geocode_cache
	WHERE query = ? AND created_at >= ?;
	`)

	var (
		r    domain.GeocodeResult
		tier string
	)
	err = s.DB.QueryRowContext(ctx, q, query, minCreated).
		Scan(&r.Latitude, &r.Longitude, &r.Label, &tier, &r.Quality.Score, &r.Provider)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GeocodeResult{}, false, nil
	}
	if err != nil {
		return domain.GeocodeResult{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	r.Quality.Tier = domain.MatchTier(tier)

	return r, true, nil
}

func (s *SQLGeocodeCache) Put(ctx context.Context, query string, r domain.GeocodeResult) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return errors.New("insert geocode cache: empty query key")
	}

	q := s.Dialect.Rebind(`
	INSERT INTO geocode_cache (query, lat, lon, label, tier, score, provider, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (query) DO UPDATE
	SET lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		label = EXCLUDED.label,
		tier = EXCLUDED.tier,
		score = EXCLUDED.score,
		provider = EXCLUDED.provider,
		created_at = EXCLUDED.created_at;
	`)

	if _, err := s.DB.ExecContext(ctx, q,
		query, r.Latitude, r.Longitude, r.Label, string(r.Quality.Tier), r.Quality.Score, r.Provider,
		s.clock().Unix(),
	); err != nil {
		return fmt.Errorf("insert geocode cache query=%q: %w", query, err)
	}

	return nil
}

func (s *SQLGeocodeCache) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
