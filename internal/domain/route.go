package domain

// A labelled point used both as optimizer input and leg output.
type Stop struct {
	Label     string
	Latitude  float64
	Longitude float64
}

func (s Stop) Coordinates() Coordinates {
	return Coordinates{Lon: s.Longitude, Lat: s.Latitude}
}

// Represents a single leg of an optimized route.
// Order 0 is always the origin and carries zero metrics.
type RouteLeg struct {
	Order                    int
	Label                    string
	Latitude                 float64
	Longitude                float64
	DistanceMeters           int
	EtaSeconds               int
	CumulativeDistanceMeters int
	CumulativeEtaSeconds     int
	StaticEtaSeconds         int
	TrafficDelaySeconds      int
	HasToll                  bool
	TollCurrency             string
	TollCost                 float64
}

// Represents the optimized open path over an origin and its stops.
// Totals are sums over Legs.
type RouteResult struct {
	Legs                     []RouteLeg
	TotalDistanceMeters      int
	TotalEtaSeconds          int
	TotalStaticEtaSeconds    int
	TotalTrafficDelaySeconds int
	TotalTollCost            float64
	TotalTollCurrency        string
	DistanceProvider         string
	UsesLiveTraffic          bool
	ContainsTolls            bool
}
