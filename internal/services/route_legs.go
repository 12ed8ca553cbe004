package services

import (
	"addris-route-service/internal/domain"
	"fmt"
)

// AssembleRoute turns a visiting order into legs with per-leg and cumulative
// metrics. Leg 0 is the start and carries no metrics.
func AssembleRoute(points []domain.Stop, order []int, m domain.DistanceMatrix) (domain.RouteResult, error) {
	n := len(points)
	if err := checkOrder(order, n); err != nil {
		return domain.RouteResult{}, err
	}
	if n > 0 {
		if err := m.Validate(n); err != nil {
			return domain.RouteResult{}, &domain.OptimizationInfeasibleError{Reason: fmt.Sprintf("matrix: %v", err)}
		}
	}

	res := domain.RouteResult{
		Legs:             make([]domain.RouteLeg, 0, n),
		DistanceProvider: m.Provider,
		UsesLiveTraffic:  m.UsesLiveTraffic,
	}

	currency := ""
	mixed := false
	for k, idx := range order {
		p := points[idx]
		leg := domain.RouteLeg{
			Order:     k,
			Label:     p.Label,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		}

		if k > 0 {
			prev := order[k-1]
			leg.DistanceMeters = m.Distances[prev][idx]
			leg.EtaSeconds = m.Durations[prev][idx]
			leg.StaticEtaSeconds = m.StaticDurations[prev][idx]
			// Negative when live traffic beats the static estimate.
			leg.TrafficDelaySeconds = leg.EtaSeconds - leg.StaticEtaSeconds

			if toll := m.Tolls[prev][idx]; toll != nil {
				leg.HasToll = true
				leg.TollCurrency = toll.Currency
				leg.TollCost = toll.Cost

				switch {
				case toll.Currency == "":
				case currency == "":
					currency = toll.Currency
				case currency != toll.Currency:
					mixed = true
				}
			}
		}

		res.TotalDistanceMeters += leg.DistanceMeters
		res.TotalEtaSeconds += leg.EtaSeconds
		res.TotalStaticEtaSeconds += leg.StaticEtaSeconds
		res.TotalTrafficDelaySeconds += leg.TrafficDelaySeconds
		res.TotalTollCost += leg.TollCost
		res.ContainsTolls = res.ContainsTolls || leg.HasToll

		leg.CumulativeDistanceMeters = res.TotalDistanceMeters
		leg.CumulativeEtaSeconds = res.TotalEtaSeconds
		res.Legs = append(res.Legs, leg)
	}

	if !mixed {
		res.TotalTollCurrency = currency
	}
	return res, nil
}

// checkOrder requires a permutation of 0..n-1 that starts at 0.
func checkOrder(order []int, n int) error {
	if len(order) != n {
		return &domain.OptimizationInfeasibleError{Reason: fmt.Sprintf("order has %d nodes, want %d", len(order), n)}
	}
	if n == 0 {
		return nil
	}
	if order[0] != 0 {
		return &domain.OptimizationInfeasibleError{Reason: "order must start at node 0"}
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return &domain.OptimizationInfeasibleError{Reason: fmt.Sprintf("order is not a permutation: node %d", idx)}
		}
		seen[idx] = true
	}
	return nil
}
