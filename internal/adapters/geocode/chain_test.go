package geocode

import (
	"addris-route-service/internal/domain"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGeocoder struct {
	mock.Mock
	name string
}

func (m *MockGeocoder) Name() string { return m.name }

func (m *MockGeocoder) Geocode(ctx context.Context, query string) (domain.GeocodeResult, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(domain.GeocodeResult), args.Error(1)
}

func found(provider string, tier domain.MatchTier) domain.GeocodeResult {
	return domain.GeocodeResult{
		Latitude:  42.36,
		Longitude: -71.05,
		Label:     "Boston",
		Quality:   domain.MatchQuality{Tier: tier, Score: 0.8},
		Provider:  provider,
	}
}

func TestChainFallsOverOnError(t *testing.T) {
	primary := &MockGeocoder{name: "ors"}
	primary.On("Geocode", mock.Anything, "q1").Return(domain.GeocodeResult{}, &domain.ProviderRateLimitError{Provider: "ors"})

	secondary := &MockGeocoder{name: "nominatim"}
	secondary.On("Geocode", mock.Anything, "q1").Return(found("nominatim", domain.TierExact), nil)

	c := NewChain(time.Second, nil, primary, secondary)
	res, err := c.GeocodeFirst(context.Background(), []string{"q1", "q2"})

	require.NoError(t, err)
	assert.Equal(t, "nominatim", res.Provider)
	// a failing provider is not asked for further variants
	primary.AssertNotCalled(t, "Geocode", mock.Anything, "q2")
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}

func TestChainTriesVariantsBeforeNextProvider(t *testing.T) {
	primary := &MockGeocoder{name: "ors"}
	primary.On("Geocode", mock.Anything, "full").Return(notFound("ors"), nil)
	primary.On("Geocode", mock.Anything, "zip5").Return(found("ors", domain.TierApproximate), nil)

	secondary := &MockGeocoder{name: "nominatim"}

	c := NewChain(time.Second, nil, primary, secondary)
	res, err := c.GeocodeFirst(context.Background(), []string{"full", "zip5"})

	require.NoError(t, err)
	assert.Equal(t, "ors", res.Provider)
	secondary.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestChainTotalFailure(t *testing.T) {
	primary := &MockGeocoder{name: "ors"}
	primary.On("Geocode", mock.Anything, "q").Return(domain.GeocodeResult{}, &domain.ProviderAuthError{Provider: "ors", Status: 401})

	secondary := &MockGeocoder{name: "nominatim"}
	secondary.On("Geocode", mock.Anything, "q").Return(notFound("nominatim"), nil)

	res, err := NewChain(time.Second, nil, primary, secondary).Geocode(context.Background(), "q")

	assert.False(t, res.Found())
	var ae *domain.ProviderAuthError
	assert.True(t, errors.As(err, &ae))
}

func TestChainNothingFoundIsNotAnError(t *testing.T) {
	only := &MockGeocoder{name: "nominatim"}
	only.On("Geocode", mock.Anything, "q").Return(notFound("nominatim"), nil)

	res, err := NewChain(time.Second, nil, only).Geocode(context.Background(), "q")

	assert.NoError(t, err)
	assert.Equal(t, domain.TierNone, res.Quality.Tier)
}

type slowGeocoder struct{}

func (slowGeocoder) Name() string { return "slow" }

func (slowGeocoder) Geocode(ctx context.Context, _ string) (domain.GeocodeResult, error) {
	<-ctx.Done()
	return domain.GeocodeResult{}, ctx.Err()
}

func TestChainPerCallTimeout(t *testing.T) {
	backup := &MockGeocoder{name: "nominatim"}
	backup.On("Geocode", mock.Anything, "q").Return(found("nominatim", domain.TierExact), nil)

	res, err := NewChain(20*time.Millisecond, nil, slowGeocoder{}, backup).Geocode(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, "nominatim", res.Provider)
}

func TestChainWithoutProviders(t *testing.T) {
	_, err := NewChain(time.Second, nil).Geocode(context.Background(), "q")
	var ce *domain.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}
