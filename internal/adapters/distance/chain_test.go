package distance

import (
	"addris-route-service/internal/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labelledPairs = []MockPair{
	{From: "Depot", To: "Castle Ridge", Meters: 8200, Seconds: 660},
	{From: "Castle Ridge", To: "Depot", Meters: 8350, Seconds: 690},
}

func TestChainUsesFirstProvider(t *testing.T) {
	primary := NewMockMatrixProvider("google", labelledPairs)

	m, err := NewChain(time.Second, nil, primary).Matrix(context.Background(), twoStops)
	require.NoError(t, err)
	assert.Equal(t, "google", m.Provider)
	assert.Equal(t, 8200, m.Distances[0][1])
}

func TestChainFallsBackToHaversine(t *testing.T) {
	primary := NewMockMatrixProvider("google", nil)
	primary.Err = &domain.ProviderRateLimitError{Provider: "google"}
	secondary := NewMockMatrixProvider("ors", nil)
	secondary.Err = &domain.ProviderAuthError{Provider: "ors", Status: 403}

	c := NewChain(time.Second, nil, primary, secondary)
	assert.Equal(t, []string{"google", "ors", "haversine"}, c.Providers())

	m, err := c.Matrix(context.Background(), twoStops)
	require.NoError(t, err)
	assert.Equal(t, "haversine", m.Provider)
	assert.False(t, m.UsesLiveTraffic)
	assert.Greater(t, m.Distances[0][1], 0)
	assert.Equal(t, 1, primary.Calls)
	assert.Equal(t, 1, secondary.Calls)
}

type malformedProvider struct{}

func (malformedProvider) Name() string { return "broken" }

func (malformedProvider) Matrix(context.Context, []domain.Stop) (domain.DistanceMatrix, error) {
	return domain.NewDistanceMatrix(1, "broken"), nil
}

func TestChainRejectsMalformedMatrix(t *testing.T) {
	m, err := NewChain(time.Second, nil, malformedProvider{}).Matrix(context.Background(), twoStops)
	require.NoError(t, err)
	assert.Equal(t, "haversine", m.Provider)
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "slow" }

func (blockingProvider) Matrix(ctx context.Context, _ []domain.Stop) (domain.DistanceMatrix, error) {
	<-ctx.Done()
	return domain.DistanceMatrix{}, ctx.Err()
}

func TestChainPerCallTimeout(t *testing.T) {
	m, err := NewChain(20*time.Millisecond, nil, blockingProvider{}).Matrix(context.Background(), twoStops)
	require.NoError(t, err)
	assert.Equal(t, "haversine", m.Provider)
}

func TestChainHonoursCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(time.Second, nil, blockingProvider{}).Matrix(ctx, twoStops)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestChainDoesNotDuplicateHaversine(t *testing.T) {
	c := NewChain(time.Second, nil, NewHaversine())
	assert.Equal(t, []string{"haversine"}, c.Providers())
}
