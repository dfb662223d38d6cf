package stripe

import (
	"captains-log/config"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.stripe.com"

type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (%s, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("stripe: %s (status %d)", e.Message, e.StatusCode)
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

type Price struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type CustomerDetails struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

type CheckoutSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	Created         int64             `json:"created"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *CustomerDetails  `json:"customer_details"`
}

type CheckoutParams struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Client calls the Stripe REST API with form encoded requests.
type Client struct {
	http *resty.Client
}

func NewClient(cfg config.Stripe) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(cfg.SecretKey).
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
	}
}

// CreatePrice creates a one-off price for an unnamed donation product.
func (c *Client) CreatePrice(ctx context.Context, unitAmount int64, currency, productName string) (*Price, error) {
	var price Price
	err := c.post(ctx, "/v1/prices", map[string]string{
		"unit_amount":        strconv.FormatInt(unitAmount, 10),
		"currency":           currency,
		"product_data[name]": productName,
	}, &price)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	form := map[string]string{
		"payment_method_types[0]": "card",
		"line_items[0][price]":    params.PriceID,
		"line_items[0][quantity]": "1",
		"mode":                    "payment",
		"success_url":             params.SuccessURL,
		"cancel_url":              params.CancelURL,
	}
	for k, v := range params.Metadata {
		form["metadata["+k+"]"] = v
	}
	var session CheckoutSession
	if err := c.post(ctx, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var session CheckoutSession
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&session).
		SetError(&apiErr).
		Get("/v1/checkout/sessions/{id}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		apiErr.Error.StatusCode = resp.StatusCode()
		return nil, &apiErr.Error
	}
	return &session, nil
}

func (c *Client) post(ctx context.Context, path string, form map[string]string, out any) error {
	var apiErr errorEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(out).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr.Error.StatusCode = resp.StatusCode()
		return &apiErr.Error
	}
	return nil
}
