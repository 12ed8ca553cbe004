package main

import (
	"addris-route-service/internal/adapters/cache"
	"addris-route-service/internal/adapters/distance"
	"addris-route-service/internal/adapters/geocode"
	"addris-route-service/internal/adapters/llm"
	"addris-route-service/internal/adapters/ocr"
	"addris-route-service/internal/config"
	"addris-route-service/internal/platform/db"
	"addris-route-service/internal/platform/events"
	"addris-route-service/internal/platform/metrics"
	"addris-route-service/internal/ports"
	"addris-route-service/internal/services"
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// stores holds the optional cache backends.
type stores struct {
	sql     *sql.DB
	dialect db.Dialect
	redis   *redis.Client
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}
	var err error

	switch cfg.Cache.Backend {
	case "redis":
		if st.redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisURL); err != nil {
			return nil, err
		}
	case "postgres":
		if st.sql, err = db.Open(ctx, cfg.Cache.DatabaseURL); err != nil {
			return nil, err
		}
		st.dialect = db.Postgres
	case "sqlite":
		if st.sql, err = db.OpenSQLite(ctx, cfg.Cache.SQLitePath); err != nil {
			return nil, err
		}
		st.dialect = db.SQLite
	}

	if st.sql != nil {
		if err := cache.InitSchema(ctx, st.sql); err != nil {
			st.Close()
			return nil, fmt.Errorf("open stores: %w", err)
		}
	}
	return st, nil
}

func (s *stores) Close() {
	if s.sql != nil {
		_ = s.sql.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func (s *stores) geocodeCache(cfg *config.Config) ports.GeocodeCache {
	switch {
	case s.redis != nil:
		return cache.NewRedisGeocodeCache(s.redis, cfg.Cache.TTL)
	case s.sql != nil:
		return cache.NewSQLGeocodeCache(s.sql, s.dialect, cfg.Cache.TTL)
	}
	return nil
}

// Providers without credentials are skipped; Nominatim needs none.
func buildGeocoder(ctx context.Context, cfg *config.Config, st *stores, m *metrics.Collector) (*geocode.Chain, error) {
	l := zerolog.Ctx(ctx)
	gc := st.geocodeCache(cfg)

	var providers []ports.Geocoder
	for _, name := range cfg.Geocoding.Providers {
		var (
			p   ports.Geocoder
			err error
		)
		switch name {
		case "ors":
			p, err = geocode.NewORS(cfg.Geocoding.ORSAPIKey, cfg.Geocoding.ORSBaseURL, cfg.Geocoding.Timeout)
		case "google":
			p, err = geocode.NewGoogle(cfg.Geocoding.GoogleAPIKey, "", cfg.Geocoding.Timeout)
		case "nominatim":
			p = geocode.NewNominatim(cfg.Geocoding.NominatimBaseURL, cfg.Geocoding.NominatimEmail, cfg.Geocoding.Timeout)
		}
		if err != nil {
			l.Warn().Err(err).Str("provider", name).Msg("geocoder skipped")
			continue
		}
		if gc != nil {
			p = geocode.NewCached(p, gc)
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("build geocoder: no usable provider in %v", cfg.Geocoding.Providers)
	}
	return geocode.NewChain(cfg.Geocoding.Timeout, m, providers...), nil
}

// Haversine is always appended by the chain.
func buildDistanceChain(ctx context.Context, cfg *config.Config, st *stores, m *metrics.Collector) *distance.Chain {
	l := zerolog.Ctx(ctx)

	var providers []ports.DistanceMatrixProvider
	for _, name := range cfg.Routing.Providers {
		var (
			p   ports.DistanceMatrixProvider
			err error
		)
		switch name {
		case "google":
			p, err = distance.NewGoogleRoutes(cfg.Geocoding.GoogleAPIKey, "", cfg.Routing.UseTraffic, cfg.Routing.Timeout)
		case "ors":
			var dc ports.DistanceCache
			if st.sql != nil {
				dc = cache.NewSQLDistanceCache(st.sql, st.dialect, "ors")
			}
			p, err = distance.NewORS(cfg.Geocoding.ORSAPIKey, cfg.Geocoding.ORSBaseURL, cfg.Routing.Timeout, dc)
		default:
			continue
		}
		if err != nil {
			l.Warn().Err(err).Str("provider", name).Msg("distance provider skipped")
			continue
		}
		providers = append(providers, p)
	}

	return distance.NewChain(cfg.Routing.Timeout, m, providers...)
}

func buildStrategy(cfg *config.Config) (ports.ExtractionStrategy, error) {
	var deps services.StrategyDeps

	if cfg.UsesOCR() {
		engine, err := ocr.New(ocr.Options{
			Backend:     cfg.OCR.Backend,
			Bin:         cfg.OCR.Bin,
			Lang:        cfg.OCR.Lang,
			TessdataDir: cfg.OCR.TessdataDir,
			EasyOCRURL:  cfg.OCR.EasyOCRURL,
			Timeout:     cfg.OCR.Timeout,
			Preprocess:  cfg.OCR.Preprocess,
		})
		if err != nil {
			return nil, err
		}
		deps.OCR = engine
	}

	if cfg.UsesLLM() {
		model, err := llm.New(llm.Options{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
			APIKey:   cfg.LLM.APIKey,
			Timeout:  cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		deps.LLM = model
	}

	return services.NewStrategy(services.StrategyConfig{
		Name:              cfg.Extraction.Strategy,
		DefaultConfidence: cfg.Extraction.DefaultConfidence,
		LLMMaxAttempts:    cfg.LLM.MaxAttempts,
		MinCompleteness:   cfg.Extraction.MinCompleteness,
	}, deps)
}

// An unreachable NATS server downgrades to dropping events.
func buildPublisher(cfg *config.Config, logger zerolog.Logger, m *metrics.Collector) (ports.EventPublisher, func()) {
	if cfg.Events.NATSURL == "" {
		return events.Noop{}, func() {}
	}
	pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger, m)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, events disabled")
		return events.Noop{}, func() {}
	}
	return pub, pub.Close
}
