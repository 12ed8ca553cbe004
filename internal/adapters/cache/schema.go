package cache

import (
	"addris-route-service/internal/platform/db"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the cache tables. Statements are valid for both
// Postgres and SQLite.
func InitSchema(ctx context.Context, conn *sql.DB) error {
	if conn == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createDistanceCacheQuery := `
	CREATE TABLE IF NOT EXISTS distance_cache (
		provider TEXT NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		PRIMARY KEY (provider, origin, destination)
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		query TEXT PRIMARY KEY,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		label TEXT NOT NULL,
		tier TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		provider TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_cache_destination_origin
	ON distance_cache(provider, destination, origin);
	`

	statements := []string{
		createDistanceCacheQuery,
		createGeocodeCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// dialectOf defaults unknown dialects to SQLite placeholders.
func dialectOf(d db.Dialect) db.Dialect {
	if d == db.Postgres {
		return db.Postgres
	}
	return db.SQLite
}
