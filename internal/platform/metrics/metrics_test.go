package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorCountsAndServes(t *testing.T) {
	c := NewCollector()
	c.ObserveProviderCall("geocode", "nominatim", 20*time.Millisecond, "ok")
	c.IncFallback("distance")
	c.IncFallback("distance")
	c.IncCandidate("validated")
	c.EventPublished(errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ProviderFallbacks.WithLabelValues("distance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventsPublished.WithLabelValues("error")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "addris_address_candidates_total")
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.IncFallback("geocode")
		c.ObserveSolver("exact", time.Millisecond)
		c.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
}
