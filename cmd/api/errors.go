package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/therealutkarshpriyadarshi/examprep/internal/aiflow"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrQuotaExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, aiflow.ErrFlow):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error. Internal details are logged, not returned.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)

	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		msg = "Internal server error"
	case http.StatusBadGateway:
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("AI flow failed")
		msg = "The AI service could not complete the request, your quota was not charged"
	case http.StatusTooManyRequests:
		msg = "Daily AI quota exhausted"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
