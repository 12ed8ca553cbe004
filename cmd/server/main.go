package main

import (
	"addris-route-service/internal/address"
	"addris-route-service/internal/api"
	"addris-route-service/internal/config"
	"addris-route-service/internal/platform/metrics"
	"addris-route-service/internal/platform/obs"
	"addris-route-service/internal/services"
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main is the application composition root.
// It wires concrete adapters behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := obs.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	m := metrics.NewCollector()

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot open cache stores")
	}
	defer st.Close()

	geocoder, err := buildGeocoder(ctx, cfg, st, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot build geocoder chain")
	}
	distances := buildDistanceChain(ctx, cfg, st, m)

	strategy, err := buildStrategy(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot build extraction strategy")
	}

	policy, err := services.NewFusionPolicy(cfg.Fusion.Policy, cfg.Fusion.ExtractionWeight, cfg.Fusion.GeocodeWeight)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot build fusion policy")
	}
	optimizer, err := services.NewOptimizer(cfg.Routing.Metric, cfg.Routing.SolverTimeout, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot build optimizer")
	}

	events, closeEvents := buildPublisher(cfg, logger, m)
	defer closeEvents()

	extractor := &services.Extractor{
		Strategy:    strategy,
		Normalizer:  address.NewNormalizer(address.DefaultCompleteness(), cfg.Extraction.MinCompleteness),
		Geocoder:    geocoder,
		Fusion:      services.NewFusion(policy, cfg.Fusion.ValidationThreshold),
		Concurrency: cfg.Geocoding.Concurrency,
		Events:      events,
		Metrics:     m,
	}
	planner := &services.RoutePlanner{
		Provider:  distances,
		Optimizer: optimizer,
		Events:    events,
		Metrics:   m,
	}

	router := api.NewRouter(api.Deps{
		Extractor: extractor,
		Planner:   planner,
		Metrics:   m,
		Logger:    logger,
	})

	// Timeouts are tuned for OCR and LLM latency on cold caches.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Str("strategy", strategy.Name()).
		Strs("distance_providers", distances.Providers()).
		Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}
