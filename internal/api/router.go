package api

import (
	"addris-route-service/internal/api/handlers"
	"addris-route-service/internal/platform/metrics"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Dependencies of the HTTP surface. Handlers stay unaware of concrete adapters.
type Deps struct {
	Extractor handlers.AddressExtractor
	Planner   handlers.RoutePlanner
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
func NewRouter(d Deps) http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = handlers.MaxImageBytes
	r.Use(gin.Recovery(), requestContext(d.Logger), accessLog(d.Metrics))

	addresses := &handlers.AddressHandler{Extractor: d.Extractor}
	routes := &handlers.RouteHandler{Planner: d.Planner}

	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/addresses/extract", addresses.Extract)
	v1.POST("/routes", routes.Plan)

	return r
}
