package distance

import (
	"addris-route-service/internal/adapters/cache"
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/db"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteDistanceCache(t *testing.T) *cache.SQLDistanceCache {
	t.Helper()
	ctx := context.Background()

	conn, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, cache.InitSchema(ctx, conn))

	return cache.NewSQLDistanceCache(conn, db.SQLite, "ors")
}

func TestORSMatrixUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v2/matrix/driving-car", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("Authorization"))

		var req matrixRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{0, 1}, req.Sources)
		assert.Equal(t, []int{0, 1}, req.Destinations)
		assert.Equal(t, []float64{-97.7431, 30.2672}, req.Locations[0])

		_, _ = w.Write([]byte(`{"distances":[[0,8200.4],[8349.6,0]],"durations":[[0,659.5],[690.2,0]]}`))
	}))
	defer srv.Close()

	o, err := NewORS("key", srv.URL, time.Second, newSQLiteDistanceCache(t))
	require.NoError(t, err)

	first, err := o.Matrix(context.Background(), twoStops)
	require.NoError(t, err)
	assert.Equal(t, 8200, first.Distances[0][1])
	assert.Equal(t, 8350, first.Distances[1][0])
	assert.Equal(t, 660, first.Durations[0][1])
	assert.Equal(t, first.Durations, first.StaticDurations)
	assert.False(t, first.UsesLiveTraffic)
	assert.Equal(t, "ors", first.Provider)

	second, err := o.Matrix(context.Background(), twoStops)
	require.NoError(t, err)
	assert.Equal(t, first.Distances, second.Distances)
	assert.Equal(t, first.Durations, second.Durations)
	assert.Equal(t, int32(1), calls.Load())
}

func TestORSMatrixUnroutablePair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"distances":[[0,null],[10,0]],"durations":[[0,null],[5,0]]}`))
	}))
	defer srv.Close()

	o, err := NewORS("key", srv.URL, time.Second, nil)
	require.NoError(t, err)

	_, err = o.Matrix(context.Background(), twoStops)
	var pe *domain.ProviderError
	assert.True(t, errors.As(err, &pe))
}

func TestORSMatrixShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"distances":[[0,1]],"durations":[[0,1]]}`))
	}))
	defer srv.Close()

	o, err := NewORS("key", srv.URL, time.Second, nil)
	require.NoError(t, err)

	_, err = o.Matrix(context.Background(), twoStops)
	var pe *domain.ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestORSMatrixSinglePointSkipsNetwork(t *testing.T) {
	o, err := NewORS("key", "http://127.0.0.1:1", time.Second, nil)
	require.NoError(t, err)

	m, err := o.Matrix(context.Background(), twoStops[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, m.Size())
}
