package cache

import (
	"addris-route-service/internal/domain"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisGeocodeCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	c := NewRedisGeocodeCache(client, time.Minute)

	want := domain.GeocodeResult{
		Latitude:  30.2672,
		Longitude: -97.7431,
		Label:     "609 Castle Ridge Rd, Austin, TX 78746",
		Quality:   domain.MatchQuality{Tier: domain.TierExact, Score: 0.9},
		Provider:  "ors",
	}
	require.NoError(t, c.Put(ctx, "609, castle ridge rd, austin, tx", want))

	got, ok, err := c.Get(ctx, "609, castle ridge rd, austin, tx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "609, castle ridge rd, austin, tx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "::not a url")
	assert.Error(t, err)
}
