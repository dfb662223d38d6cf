package service

import (
	"captains-log/dto"
	"captains-log/entities"
	"captains-log/pkg/stripe"
	"captains-log/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	CustomPriceId       = "custom"
	customProductName   = "Custom Donation"
	successPathTemplate = "/contribute/success?session_id={CHECKOUT_SESSION_ID}"
	cancelPath          = "/contribute?canceled=true"
)

var (
	ErrInvalidAmount    = errors.New("invalid donation amount")
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
)

// PaymentGateway is the Stripe API used by donations.
type PaymentGateway interface {
	CreatePrice(ctx context.Context, unitAmount int64, currency, productName string) (*stripe.Price, error)
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type DonationConfig struct {
	Currency      string
	WebhookSecret string
	Tolerance     time.Duration
}

type DonationService interface {
	Checkout(ctx context.Context, req dto.CheckoutRequest, baseURL, userId string) (*dto.CheckoutResponse, error)
	VerifyPayment(ctx context.Context, sessionId string) (bool, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*entities.Donation, error)
}

type donationService struct {
	repo    repository.Repository
	gateway PaymentGateway
	cfg     DonationConfig
	clock   func() time.Time
}

func NewDonationService(repo repository.Repository, gateway PaymentGateway, cfg DonationConfig, clock func() time.Time) DonationService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = stripe.DefaultTolerance
	}
	if clock == nil {
		clock = time.Now
	}
	return &donationService{
		repo:    repo,
		gateway: gateway,
		cfg:     cfg,
		clock:   clock,
	}
}

// AmountToCents converts a decimal amount such as "12.50" to cents.
func AmountToCents(amount string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidAmount
	}
	cents := int64(math.Round(f * 100))
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

func (s *donationService) Checkout(ctx context.Context, req dto.CheckoutRequest, baseURL, userId string) (*dto.CheckoutResponse, error) {
	priceId := req.PriceId
	if priceId == CustomPriceId {
		cents, err := AmountToCents(req.Amount)
		if err != nil {
			return nil, err
		}
		price, err := s.gateway.CreatePrice(ctx, cents, s.cfg.Currency, customProductName)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create custom price")
			return nil, err
		}
		priceId = price.ID
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	session, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		PriceID:    priceId,
		SuccessURL: baseURL + successPathTemplate,
		CancelURL:  baseURL + cancelPath,
		Metadata: map[string]string{
			"userId":  userId,
			"priceId": priceId,
			"amount":  req.Amount,
		},
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create checkout session")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("checkout_id", session.ID).Str("price_id", priceId).Msg("checkout session created")
	return &dto.CheckoutResponse{
		Ok:     true,
		Id:     session.ID,
		Url:    session.URL,
		Status: session.Status,
	}, nil
}

func (s *donationService) VerifyPayment(ctx context.Context, sessionId string) (bool, error) {
	session, err := s.gateway.GetCheckoutSession(ctx, sessionId)
	if err != nil {
		return false, err
	}
	return session.PaymentStatus == "paid", nil
}

// HandleWebhook verifies a checkout event and records the donation.
// Redelivered events are stored once.
func (s *donationService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*entities.Donation, error) {
	event, err := stripe.ConstructEvent(payload, signature, s.cfg.WebhookSecret, s.cfg.Tolerance, s.clock())
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("rejected webhook")
		return nil, err
	}
	if event.Type != stripe.EventCheckoutCompleted && event.Type != stripe.EventCheckoutAsyncPaymentSucceeded {
		zerolog.Ctx(ctx).Info().Str("event_type", event.Type).Msg("ignoring webhook event")
		return nil, ErrUnsupportedEvent
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	donation := &entities.Donation{
		ID:            uuid.New(),
		CheckoutId:    session.ID,
		UserId:        session.Metadata["userId"],
		PriceId:       session.Metadata["priceId"],
		Amount:        session.AmountTotal,
		Currency:      session.Currency,
		EventType:     event.Type,
		StripeCreated: time.Unix(session.Created, 0).UTC(),
	}
	if session.CustomerDetails != nil {
		donation.CustomerEmail = session.CustomerDetails.Email
		donation.CustomerName = session.CustomerDetails.Name
	}

	if err := s.repo.CreateDonation(ctx, donation); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("checkout_id", session.ID).Msg("failed to save donation")
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("checkout_id", session.ID).Int64("amount", donation.Amount).Msg("donation recorded")
	return donation, nil
}
