package httpclient

import (
	"addris-route-service/internal/domain"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendJSONRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("ors", time.Second)
	c.Backoff = time.Millisecond
	c.Header.Set("Authorization", "secret")

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.SendJSON(context.Background(), http.MethodPost, srv.URL, map[string]int{"a": 1}, &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendClassifiesAuthFailureWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New("google", time.Second)
	c.Backoff = time.Millisecond

	_, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil)

	var ae *domain.ProviderAuthError
	require.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, "google", ae.Provider)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendExhaustsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New("nominatim", time.Second)
	c.Backoff = time.Millisecond
	c.MaxAttempts = 2

	_, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil)

	var re *domain.ProviderRateLimitError
	assert.True(t, errors.As(err, &re), "got %v", err)
}

func TestSendJSONDecodeFailureIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := New("ors", time.Second).SendJSON(context.Background(), http.MethodGet, srv.URL, nil, &out)

	var pe *domain.ParseError
	assert.True(t, errors.As(err, &pe), "got %v", err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
}
