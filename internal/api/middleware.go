package api

import (
	"addris-route-service/internal/platform/metrics"
	"addris-route-service/internal/platform/obs"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// requestContext assigns a request id and stores a child logger carrying it
// in the request context, so services can log through zerolog.Ctx.
func requestContext(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		logger := base.With().Str("req_id", id).Logger()
		ctx := obs.WithRequestID(c.Request.Context(), id)
		ctx = logger.WithContext(ctx)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// accessLog logs end-to-end request duration and response size and records
// the request in metrics.
func accessLog(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		dur := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), dur)

		l := zerolog.Ctx(c.Request.Context())
		ev := l.Info()
		if c.Writer.Status() >= 500 {
			ev = l.Error()
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.RequestURI()).
			Int("status", c.Writer.Status()).
			Int("bytes", max(c.Writer.Size(), 0)).
			Int64("dur_ms", dur.Milliseconds()).
			Msg("http request")
	}
}
