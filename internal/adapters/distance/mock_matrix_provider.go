package distance

import (
	"addris-route-service/internal/domain"
	"context"
	"fmt"
)

type MockPair struct {
	From, To string
	Meters   int
	Seconds  int
}

// MockMatrixProvider answers from a fixed table of labelled pairs. A missing
// off-diagonal pair is an error, as is a non-nil Err.
type MockMatrixProvider struct {
	name  string
	m     map[string]MockPair
	Err   error
	Calls int
}

func NewMockMatrixProvider(name string, pairs []MockPair) *MockMatrixProvider {
	m := make(map[string]MockPair, len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = p
	}
	return &MockMatrixProvider{name: name, m: m}
}

func (p *MockMatrixProvider) Name() string { return p.name }

func (p *MockMatrixProvider) Matrix(ctx context.Context, points []domain.Stop) (domain.DistanceMatrix, error) {
	p.Calls++
	if p.Err != nil {
		return domain.DistanceMatrix{}, p.Err
	}

	out := domain.NewDistanceMatrix(len(points), p.name)
	for i, from := range points {
		for j, to := range points {
			if i == j {
				continue
			}
			r, ok := p.m[from.Label+"|"+to.Label]
			if !ok {
				return domain.DistanceMatrix{}, fmt.Errorf("missing pair %q -> %q", from.Label, to.Label)
			}
			out.Distances[i][j] = r.Meters
			out.Durations[i][j] = r.Seconds
			out.StaticDurations[i][j] = r.Seconds
		}
	}

	return out, nil
}
