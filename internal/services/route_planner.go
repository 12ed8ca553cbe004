package services

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/metrics"
	"addris-route-service/internal/platform/obs"
	"addris-route-service/internal/ports"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RouteRequest is an optional origin plus the stops to visit.
// Without an origin the first stop is the start.
type RouteRequest struct {
	Origin *domain.Stop
	Stops  []domain.Stop
}

// Nodes returns origin (when set) followed by the stops.
func (r RouteRequest) Nodes() []domain.Stop {
	nodes := make([]domain.Stop, 0, len(r.Stops)+1)
	if r.Origin != nil {
		nodes = append(nodes, *r.Origin)
	}
	return append(nodes, r.Stops...)
}

// NoProvider is reported when the route needed no distance lookup.
const NoProvider = "none"

// PlanRoute computes an open path from the start through every stop.
func PlanRoute(
	ctx context.Context,
	req RouteRequest,
	provider ports.DistanceMatrixProvider,
	optimizer *Optimizer,
) (res domain.RouteResult, err error) {
	defer obs.Time(ctx, "services.PlanRoute")(&err)

	l := zerolog.Ctx(ctx)
	nodes := req.Nodes()
	l.Info().Str("state", "RECEIVED").Int("stops", len(req.Stops)).Bool("origin", req.Origin != nil).Msg("route")

	if len(req.Stops) == 0 {
		l.Info().Str("state", "ROUTED").Int("legs", 0).Msg("route")
		return domain.RouteResult{Legs: []domain.RouteLeg{}, DistanceProvider: NoProvider}, nil
	}

	var m domain.DistanceMatrix
	if len(nodes) == 1 {
		m = domain.NewDistanceMatrix(1, NoProvider)
	} else {
		m, err = provider.Matrix(ctx, nodes)
		if err != nil {
			l.Error().Str("state", "OPTIMIZATION_FAILED").Err(err).Msg("route")
			return domain.RouteResult{}, fmt.Errorf("plan route: distance matrix: %w", err)
		}
	}

	l.Info().Str("state", "OPTIMIZING").Int("nodes", len(nodes)).Str("provider", m.Provider).Msg("route")
	order, fallback, err := optimizer.Solve(ctx, optimizer.CostMatrix(m))
	if err != nil {
		l.Error().Str("state", "OPTIMIZATION_FAILED").Err(err).Msg("route")
		return domain.RouteResult{}, fmt.Errorf("plan route: optimize: %w", err)
	}
	if fallback {
		l.Warn().Int("nodes", len(nodes)).Msg("solver budget exhausted, using nearest neighbour order")
	}

	res, err = AssembleRoute(nodes, order, m)
	if err != nil {
		l.Error().Str("state", "OPTIMIZATION_FAILED").Err(err).Msg("route")
		return domain.RouteResult{}, fmt.Errorf("plan route: assemble: %w", err)
	}

	l.Info().
		Str("state", "ROUTED").
		Int("legs", len(res.Legs)).
		Int("distance_m", res.TotalDistanceMeters).
		Int("eta_s", res.TotalEtaSeconds).
		Str("provider", res.DistanceProvider).
		Msg("route")
	return res, nil
}

// RoutePlanner binds PlanRoute to a provider and optimizer and reports
// each computed route.
type RoutePlanner struct {
	Provider  ports.DistanceMatrixProvider
	Optimizer *Optimizer
	Events    ports.EventPublisher
	Metrics   *metrics.Collector
}

// Summary published after every computed route.
type RouteEvent struct {
	RequestID       string  `json:"request_id,omitempty"`
	Stops           int     `json:"stops"`
	DistanceMeters  int     `json:"total_distance_meters"`
	EtaSeconds      int     `json:"total_eta_seconds"`
	Provider        string  `json:"distance_provider"`
	UsesLiveTraffic bool    `json:"uses_live_traffic"`
	TollCost        float64 `json:"total_toll_cost"`
	DurationMs      int64   `json:"duration_ms"`
}

func (p *RoutePlanner) Plan(ctx context.Context, req RouteRequest) (domain.RouteResult, error) {
	start := time.Now()
	res, err := PlanRoute(ctx, req, p.Provider, p.Optimizer)
	if err != nil {
		return res, err
	}

	p.Metrics.IncRoute(res.DistanceProvider)
	if p.Events != nil {
		ev := RouteEvent{
			RequestID:       obs.RequestID(ctx),
			Stops:           len(req.Stops),
			DistanceMeters:  res.TotalDistanceMeters,
			EtaSeconds:      res.TotalEtaSeconds,
			Provider:        res.DistanceProvider,
			UsesLiveTraffic: res.UsesLiveTraffic,
			TollCost:        res.TotalTollCost,
			DurationMs:      time.Since(start).Milliseconds(),
		}
		if err := p.Events.Publish(ctx, "route.computed", ev); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("publish route event")
		}
	}
	return res, nil
}
