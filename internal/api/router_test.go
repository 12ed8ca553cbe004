package api

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/platform/metrics"
	"addris-route-service/internal/platform/obs"
	"addris-route-service/internal/services"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idEchoPlanner struct {
	seen string
}

func (p *idEchoPlanner) Plan(ctx context.Context, _ services.RouteRequest) (domain.RouteResult, error) {
	p.seen = obs.RequestID(ctx)
	return domain.RouteResult{Legs: []domain.RouteLeg{}, DistanceProvider: "haversine"}, nil
}

type noExtractor struct{}

func (noExtractor) Extract(context.Context, []byte) ([]domain.AddressCandidate, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, planner *idEchoPlanner, logs *bytes.Buffer) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(Deps{
		Extractor: noExtractor{},
		Planner:   planner,
		Metrics:   metrics.NewCollector(),
		Logger:    zerolog.New(logs),
	})
}

func TestRouterHealth(t *testing.T) {
	var logs bytes.Buffer
	r := newTestRouter(t, &idEchoPlanner{}, &logs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Contains(t, logs.String(), `"path":"/health"`)
}

func TestRouterPropagatesRequestID(t *testing.T) {
	var logs bytes.Buffer
	planner := &idEchoPlanner{}
	r := newTestRouter(t, planner, &logs)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes", strings.NewReader(`{"stops": []}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", planner.seen)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
	assert.Contains(t, logs.String(), `"req_id":"req-123"`)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	var logs bytes.Buffer
	r := newTestRouter(t, &idEchoPlanner{}, &logs)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `addris_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouterUnknownRoute(t *testing.T) {
	var logs bytes.Buffer
	r := newTestRouter(t, &idEchoPlanner{}, &logs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
