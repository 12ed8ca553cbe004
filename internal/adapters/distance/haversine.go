package distance

import (
	"addris-route-service/internal/domain"
	"context"
	"math"
)

const (
	earthRadiusMeters = 6_371_000.0
	// Average urban driving speed used to turn distance into time.
	averageSpeedMPS = 11.11
)

// Haversine estimates travel from great-circle distance. It needs no network
// and never fails, so it closes every fallback chain.
type Haversine struct{}

func NewHaversine() Haversine { return Haversine{} }

func (Haversine) Name() string { return "haversine" }

func (h Haversine) Matrix(_ context.Context, points []domain.Stop) (domain.DistanceMatrix, error) {
	n := len(points)
	m := domain.NewDistanceMatrix(n, h.Name())

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			meters := GreatCircleMeters(points[i].Coordinates(), points[j].Coordinates())
			seconds := int(math.Round(meters / averageSpeedMPS))
			m.Distances[i][j] = int(math.Round(meters))
			m.Durations[i][j] = seconds
			m.StaticDurations[i][j] = seconds
		}
	}

	return m, nil
}

// GreatCircleMeters returns the haversine distance between two points.
func GreatCircleMeters(a, b domain.Coordinates) float64 {
	lat1, lon1 := radians(a.Lat), radians(a.Lon)
	lat2, lon2 := radians(b.Lat), radians(b.Lon)

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
