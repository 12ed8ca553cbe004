package main

import (
	"addris-route-service/internal/adapters/cache"
	"addris-route-service/internal/platform/db"
	"addris-route-service/internal/platform/obs"
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// dbtool creates the cache schema in Postgres or SQLite.
func main() {
	_ = godotenv.Load()

	backend := flag.String("backend", getEnv("GEOCODE_CACHE", "sqlite"), "postgres or sqlite")
	databaseURL := flag.String("database-url", getEnv("DATABASE_URL", ""), "postgres connection string")
	sqlitePath := flag.String("sqlite-path", getEnv("SQLITE_PATH", "data/cache.db"), "sqlite database file")
	flag.Parse()

	logger := obs.NewLogger(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "console"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		conn *sql.DB
		err  error
	)
	switch *backend {
	case "postgres":
		if *databaseURL == "" {
			logger.Fatal().Msg("DATABASE_URL is required for postgres")
		}
		conn, err = db.Open(ctx, *databaseURL)
	case "sqlite":
		conn, err = db.OpenSQLite(ctx, *sqlitePath)
	default:
		logger.Fatal().Str("backend", *backend).Msg("backend must be postgres or sqlite")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot open database")
	}
	defer conn.Close()

	logger.Info().Str("backend", *backend).Msg("initializing cache schema")
	if err := cache.InitSchema(ctx, conn); err != nil {
		logger.Fatal().Err(err).Msg("schema initialization failed")
	}
	logger.Info().Msg("schema ready")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
