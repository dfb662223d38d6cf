package server

import (
	"captains-log/constant"
	"captains-log/pkg/auth"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const ClaimsKey = "claims"

var publicPrefixes = []string{"/api/auth/", "/api/webhooks/"}

func isPublic(path string) bool {
	if path == "/" || path == "/health" || path == "/api/auth" {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	token, _ := c.Cookie(constant.SessionCookie)
	return token
}

// AuthGate lets only the allowed identity past the public paths. API
// callers get 401 or 403, pages are sent back to the landing page.
func AuthGate(m *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isPublic(path) {
			c.Next()
			return
		}

		claims, err := m.Parse(sessionToken(c))
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Debug().Err(err).Str("path", path).Msg("request refused")
			if !strings.HasPrefix(path, "/api/") {
				c.Redirect(http.StatusFound, "/")
				c.Abort()
				return
			}
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrForbidden) {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status)})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequestLogger puts a request scoped logger into the request context and
// logs each response.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestId := c.GetHeader("X-Request-Id")
		if requestId == "" {
			requestId = uuid.NewString()
		}
		logger := base.With().Str("request_id", requestId).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Header("X-Request-Id", requestId)

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
