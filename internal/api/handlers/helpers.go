package handlers

import (
	"addris-route-service/internal/domain"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// writeServiceError maps service errors to a status. Input problems are
// echoed to the client; everything else is logged and hidden.
func writeServiceError(c *gin.Context, op string, err error) {
	var parseErr *domain.ParseError
	if errors.As(err, &parseErr) {
		msg := "invalid input"
		if parseErr.Err != nil {
			msg = parseErr.Err.Error()
		}
		writeError(c, http.StatusBadRequest, msg)
		return
	}

	zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("op", op).Msg("request failed")
	writeError(c, http.StatusInternalServerError, "internal server error")
}
