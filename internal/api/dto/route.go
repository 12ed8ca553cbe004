package dto

import "addris-route-service/internal/domain"

// Coordinates are pointers so a missing value can be told apart from 0.
type StopRequest struct {
	Label     string   `json:"label"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type RouteRequest struct {
	Origin *StopRequest  `json:"origin"`
	Stops  []StopRequest `json:"stops"`
}

type RouteLegResponse struct {
	Order                    int     `json:"order"`
	Label                    string  `json:"label"`
	Latitude                 float64 `json:"latitude"`
	Longitude                float64 `json:"longitude"`
	DistanceMeters           int     `json:"distance_meters"`
	EtaSeconds               int     `json:"eta_seconds"`
	CumulativeDistanceMeters int     `json:"cumulative_distance_meters"`
	CumulativeEtaSeconds     int     `json:"cumulative_eta_seconds"`
	StaticEtaSeconds         int     `json:"static_eta_seconds"`
	TrafficDelaySeconds      int     `json:"traffic_delay_seconds"`
	HasToll                  bool    `json:"has_toll"`
	TollCurrency             string  `json:"toll_currency,omitempty"`
	TollCost                 float64 `json:"toll_cost"`
}

type RouteResponse struct {
	Route                    []RouteLegResponse `json:"route"`
	TotalDistanceMeters      int                `json:"total_distance_meters"`
	TotalEtaSeconds          int                `json:"total_eta_seconds"`
	TotalStaticEtaSeconds    int                `json:"total_static_eta_seconds"`
	TotalTrafficDelaySeconds int                `json:"total_traffic_delay_seconds"`
	TotalTollCost            float64            `json:"total_toll_cost"`
	TotalTollCurrency        string             `json:"total_toll_currency"`
	DistanceProvider         string             `json:"distance_provider"`
	UsesLiveTraffic          bool               `json:"uses_live_traffic"`
	ContainsTolls            bool               `json:"contains_tolls"`
}

func NewRouteResponse(r domain.RouteResult) RouteResponse {
	res := RouteResponse{
		Route:                    make([]RouteLegResponse, 0, len(r.Legs)),
		TotalDistanceMeters:      r.TotalDistanceMeters,
		TotalEtaSeconds:          r.TotalEtaSeconds,
		TotalStaticEtaSeconds:    r.TotalStaticEtaSeconds,
		TotalTrafficDelaySeconds: r.TotalTrafficDelaySeconds,
		TotalTollCost:            r.TotalTollCost,
		TotalTollCurrency:        r.TotalTollCurrency,
		DistanceProvider:         r.DistanceProvider,
		UsesLiveTraffic:          r.UsesLiveTraffic,
		ContainsTolls:            r.ContainsTolls,
	}
	for _, l := range r.Legs {
		res.Route = append(res.Route, RouteLegResponse{
			Order:                    l.Order,
			Label:                    l.Label,
			Latitude:                 l.Latitude,
			Longitude:                l.Longitude,
			DistanceMeters:           l.DistanceMeters,
			EtaSeconds:               l.EtaSeconds,
			CumulativeDistanceMeters: l.CumulativeDistanceMeters,
			CumulativeEtaSeconds:     l.CumulativeEtaSeconds,
			StaticEtaSeconds:         l.StaticEtaSeconds,
			TrafficDelaySeconds:      l.TrafficDelaySeconds,
			HasToll:                  l.HasToll,
			TollCurrency:             l.TollCurrency,
			TollCost:                 l.TollCost,
		})
	}
	return res
}
