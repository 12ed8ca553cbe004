package domain

import "fmt"

// Estimated toll for one directed edge.
type TollInfo struct {
	Currency string
	Cost     float64
}

// Pairwise travel data among a set of points, indexed [from][to].
// StaticDurations equal Durations when the provider has no traffic model.
// Tolls entries are nil when the edge has no toll.
type DistanceMatrix struct {
	Distances       [][]int
	Durations       [][]int
	StaticDurations [][]int
	Tolls           [][]*TollInfo
	Provider        string
	UsesLiveTraffic bool
}

// NewDistanceMatrix allocates an n x n matrix.
func NewDistanceMatrix(n int, provider string) DistanceMatrix {
	m := DistanceMatrix{
		Distances:       make([][]int, n),
		Durations:       make([][]int, n),
		StaticDurations: make([][]int, n),
		Tolls:           make([][]*TollInfo, n),
		Provider:        provider,
	}
	for i := 0; i < n; i++ {
		m.Distances[i] = make([]int, n)
		m.Durations[i] = make([]int, n)
		m.StaticDurations[i] = make([]int, n)
		m.Tolls[i] = make([]*TollInfo, n)
	}
	return m
}

// Size returns the number of points covered by the matrix.
func (m DistanceMatrix) Size() int { return len(m.Distances) }

// Validate checks that every table is n x n.
func (m DistanceMatrix) Validate(n int) error {
	tables := map[string]int{
		"distances":        len(m.Distances),
		"durations":        len(m.Durations),
		"static durations": len(m.StaticDurations),
		"tolls":            len(m.Tolls),
	}
	for name, rows := range tables {
		if rows != n {
			return fmt.Errorf("%s: got %d rows, want %d", name, rows, n)
		}
	}
	for i := 0; i < n; i++ {
		if len(m.Distances[i]) != n || len(m.Durations[i]) != n ||
			len(m.StaticDurations[i]) != n || len(m.Tolls[i]) != n {
			return fmt.Errorf("row %d: want %d columns", i, n)
		}
	}
	return nil
}
