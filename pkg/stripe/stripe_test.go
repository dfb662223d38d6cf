package stripe

import (
	"captains-log/config"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Stripe{SecretKey: "sk_test", BaseURL: srv.URL})
}

func TestCreatePriceAndCheckout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/prices":
			assert.Equal(t, "1250", r.Form.Get("unit_amount"))
			assert.Equal(t, "Custom Donation", r.Form.Get("product_data[name]"))
			_ = json.NewEncoder(w).Encode(Price{ID: "price_custom", UnitAmount: 1250, Currency: "usd"})
		case "/v1/checkout/sessions":
			assert.Equal(t, "price_custom", r.Form.Get("line_items[0][price]"))
			assert.Equal(t, "payment", r.Form.Get("mode"))
			assert.Equal(t, "01", r.Form.Get("metadata[userId]"))
			_ = json.NewEncoder(w).Encode(CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1", Status: "open"})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	price, err := c.CreatePrice(ctx, 1250, "usd", "Custom Donation")
	require.NoError(t, err)
	assert.Equal(t, "price_custom", price.ID)

	session, err := c.CreateCheckoutSession(ctx, CheckoutParams{
		PriceID:    price.ID,
		SuccessURL: "http://localhost/contribute/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "http://localhost/contribute?canceled=true",
		Metadata:   map[string]string{"userId": "01"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "open", session.Status)
}

func TestGetCheckoutSessionError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_missing", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`))
	})

	_, err := c.GetCheckoutSession(context.Background(), "cs_missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "resource_missing", apiErr.Code)
}

func TestConstructEvent(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","created":1714726800,"data":{"object":{"id":"cs_1"}}}`)
	now := time.Unix(1714726800, 0)
	header := SignatureHeaderValue(payload, "whsec_test", now)

	event, err := ConstructEvent(payload, header, "whsec_test", DefaultTolerance, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, event.Type)
	assert.JSONEq(t, `{"id":"cs_1"}`, string(event.Data.Object))

	_, err = ConstructEvent(payload, header, "whsec_other", DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ConstructEvent(payload, header, "whsec_test", DefaultTolerance, now.Add(10*time.Minute))
	assert.ErrorIs(t, err, ErrTimestampExpired)

	_, err = ConstructEvent(payload, "garbage", "whsec_test", DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = ConstructEvent([]byte(`{"id":"evt_2"}`), header, "whsec_test", DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
