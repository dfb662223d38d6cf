package handler

import (
	"captains-log/pkg/auth"
	"captains-log/pkg/capture"
	"captains-log/pkg/stripe"
	"captains-log/repository"
	"captains-log/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler serves the HTTP API.
type Handler struct {
	StarLogs  service.StarLogService
	Sessions  service.SessionManager
	Exports   service.ExportService
	Donations service.DonationService
	Auth      *auth.Manager
	// UserId owns every entry created through the API.
	UserId string
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

func statusFor(err error) int {
	var apiErr *stripe.APIError
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrSessionUnknown):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidStarLog), errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, stripe.ErrInvalidSignature), errors.Is(err, stripe.ErrTimestampExpired),
		errors.Is(err, service.ErrUnsupportedEvent):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionActive), errors.Is(err, service.ErrNothingToPlay),
		errors.Is(err, service.ErrStaleRun), errors.Is(err, service.ErrSessionClosed),
		errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusConflict
	case errors.Is(err, service.ErrAnnotationStage):
		return http.StatusBadGateway
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400:
		return apiErr.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
