package handlers

import (
	"addris-route-service/internal/domain"
	"addris-route-service/internal/services"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRoutePlanner struct {
	mock.Mock
}

func (m *MockRoutePlanner) Plan(ctx context.Context, req services.RouteRequest) (domain.RouteResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.RouteResult), args.Error(1)
}

func TestRouteHandler_Plan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lat, lon := 42.3601, -71.0589
	okReq := services.RouteRequest{
		Origin: &domain.Stop{Label: "O", Latitude: lat, Longitude: lon},
		Stops:  []domain.Stop{{Label: "A", Latitude: 42.3656, Longitude: -71.0096}},
	}
	okRes := domain.RouteResult{
		Legs: []domain.RouteLeg{
			{Order: 0, Label: "O", Latitude: lat, Longitude: lon},
			{Order: 1, Label: "A", Latitude: 42.3656, Longitude: -71.0096, DistanceMeters: 4500, EtaSeconds: 600,
				CumulativeDistanceMeters: 4500, CumulativeEtaSeconds: 600, StaticEtaSeconds: 600},
		},
		TotalDistanceMeters:   4500,
		TotalEtaSeconds:       600,
		TotalStaticEtaSeconds: 600,
		DistanceProvider:      "haversine",
	}

	tests := []struct {
		name           string
		body           string
		planReq        *services.RouteRequest
		planRes        domain.RouteResult
		planErr        error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "invalid json",
			body:           `{"stops": [`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid json body",
		},
		{
			name:           "missing label",
			body:           `{"stops": [{"latitude": 1, "longitude": 2}]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "stops[0].label is required",
		},
		{
			name:           "latitude out of range",
			body:           `{"origin": {"label": "O", "latitude": 91, "longitude": 0}, "stops": []}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "origin.latitude must be between -90 and 90",
		},
		{
			name:           "missing longitude",
			body:           `{"stops": [{"label": "A", "latitude": 0}]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "stops[0].longitude must be between -180 and 180",
		},
		{
			name:           "planner failure",
			body:           `{"origin": {"label": "O", "latitude": 42.3601, "longitude": -71.0589}, "stops": [{"label": "A", "latitude": 42.3656, "longitude": -71.0096}]}`,
			planReq:        &okReq,
			planErr:        &domain.OptimizationInfeasibleError{Reason: "negative cost"},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal server error",
		},
		{
			name:           "success",
			body:           `{"origin": {"label": "O", "latitude": 42.3601, "longitude": -71.0589}, "stops": [{"label": "A", "latitude": 42.3656, "longitude": -71.0096}]}`,
			planReq:        &okReq,
			planRes:        okRes,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := new(MockRoutePlanner)
			handler := &RouteHandler{Planner: planner}
			if tt.planReq != nil {
				planner.On("Plan", mock.Anything, *tt.planReq).Return(tt.planRes, tt.planErr)
			}

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/v1/routes", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			handler.Plan(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, body["error"])
			} else {
				route := body["route"].([]any)
				require.Len(t, route, 2)
				assert.Equal(t, "A", route[1].(map[string]any)["label"])
				assert.Equal(t, float64(4500), body["total_distance_meters"])
				assert.Equal(t, "haversine", body["distance_provider"])
				assert.Equal(t, false, body["uses_live_traffic"])
			}

			if tt.planReq != nil {
				planner.AssertExpectations(t)
			} else {
				planner.AssertNotCalled(t, "Plan", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRouteHandler_PlanZeroStops(t *testing.T) {
	gin.SetMode(gin.TestMode)

	planner := new(MockRoutePlanner)
	planner.On("Plan", mock.Anything, services.RouteRequest{Stops: []domain.Stop{}}).
		Return(domain.RouteResult{Legs: []domain.RouteLeg{}, DistanceProvider: "google_routes"}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/routes", strings.NewReader(`{"stops": []}`))
	c.Request.Header.Set("Content-Type", "application/json")

	(&RouteHandler{Planner: planner}).Plan(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"route": [],
		"total_distance_meters": 0,
		"total_eta_seconds": 0,
		"total_static_eta_seconds": 0,
		"total_traffic_delay_seconds": 0,
		"total_toll_cost": 0,
		"total_toll_currency": "",
		"distance_provider": "google_routes",
		"uses_live_traffic": false,
		"contains_tolls": false
	}`, w.Body.String())
	planner.AssertExpectations(t)
}
