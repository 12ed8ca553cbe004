package handlers

import (
	"addris-route-service/internal/api/dto"
	"addris-route-service/internal/domain"
	"addris-route-service/internal/services"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxStops bounds a single route request.
const MaxStops = 200

type RoutePlanner interface {
	Plan(ctx context.Context, req services.RouteRequest) (domain.RouteResult, error)
}

type RouteHandler struct {
	Planner RoutePlanner
}

// Plan handles POST /v1/routes.
func (h *RouteHandler) Plan(c *gin.Context) {
	var req dto.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Stops) > MaxStops {
		writeError(c, http.StatusBadRequest, fmt.Sprintf("at most %d stops are allowed", MaxStops))
		return
	}

	svcReq := services.RouteRequest{Stops: make([]domain.Stop, 0, len(req.Stops))}
	if req.Origin != nil {
		origin, err := toStop(*req.Origin, "origin")
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		svcReq.Origin = &origin
	}
	for i, s := range req.Stops {
		stop, err := toStop(s, fmt.Sprintf("stops[%d]", i))
		if err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		svcReq.Stops = append(svcReq.Stops, stop)
	}

	res, err := h.Planner.Plan(c.Request.Context(), svcReq)
	if err != nil {
		writeServiceError(c, "plan route", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRouteResponse(res))
}

func toStop(s dto.StopRequest, field string) (domain.Stop, error) {
	label := strings.TrimSpace(s.Label)
	switch {
	case label == "":
		return domain.Stop{}, fmt.Errorf("%s.label is required", field)
	case s.Latitude == nil || *s.Latitude < -90 || *s.Latitude > 90:
		return domain.Stop{}, fmt.Errorf("%s.latitude must be between -90 and 90", field)
	case s.Longitude == nil || *s.Longitude < -180 || *s.Longitude > 180:
		return domain.Stop{}, fmt.Errorf("%s.longitude must be between -180 and 180", field)
	}
	return domain.Stop{Label: label, Latitude: *s.Latitude, Longitude: *s.Longitude}, nil
}
