package handler

import (
	"captains-log/constant"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const stateCookie = "oauth_state"

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.SecureCookies, true)
}

// Login redirects to the Google consent screen.
func (h *Handler) Login(c *gin.Context) {
	state := uuid.NewString()
	h.setCookie(c, stateCookie, state, 600)
	c.Redirect(http.StatusFound, h.Auth.AuthCodeURL(state))
}

// Callback completes sign-in. Only the allowed identity receives a session.
func (h *Handler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	h.setCookie(c, stateCookie, "", -1)

	info, err := h.Auth.Exchange(ctx, c.Query("code"))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("oauth exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in failed"})
		return
	}
	if !info.EmailVerified || !h.Auth.Allowed(info.Email) {
		zerolog.Ctx(ctx).Warn().Str("email", info.Email).Msg("sign in refused")
		c.Redirect(http.StatusFound, "/")
		return
	}

	token, err := h.Auth.Issue(info.Email, info.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	h.setCookie(c, constant.SessionCookie, token, int(h.Auth.TTL().Seconds()))
	zerolog.Ctx(ctx).Info().Str("email", info.Email).Msg("signed in")
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Logout(c *gin.Context) {
	h.setCookie(c, constant.SessionCookie, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}
