package handler

import (
	"captains-log/dto"
	"captains-log/pkg/stripe"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = 64 << 10

func (h *Handler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	scheme := "https"
	if c.Request.TLS == nil && c.GetHeader("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	resp, err := h.Donations.Checkout(c.Request.Context(), req, scheme+"://"+c.Request.Host, h.UserId)
	if err != nil {
		respondStripeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	paid, err := h.Donations.VerifyPayment(c.Request.Context(), req.SessionId)
	if err != nil {
		respondStripeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.VerifyPaymentResponse{Success: paid})
}

func (h *Handler) CheckoutWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Webhook Error: %v", err)
		return
	}
	if _, err := h.Donations.HandleWebhook(c.Request.Context(), payload, c.GetHeader(stripe.SignatureHeader)); err != nil {
		status := statusFor(err)
		if status == http.StatusBadRequest {
			c.String(status, "Webhook Error: %v", err)
			return
		}
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, "Donation recorded")
}

func respondStripeError(c *gin.Context, err error) {
	code := "unknown_error"
	var apiErr *stripe.APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		code = apiErr.Code
	}
	c.JSON(statusFor(err), gin.H{
		"ok": false,
		"error": gin.H{
			"message": err.Error(),
			"code":    code,
		},
	})
}
