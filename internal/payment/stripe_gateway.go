package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"orderpay-be/internal/logger"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.uber.org/zap"
)

const (
	defaultStripeTimeout    = 30 * time.Second
	defaultWebhookTolerance = webhook.DefaultTolerance
)

type StripeConfig struct {
	SecretKey string
	// APIURL overrides https://api.stripe.com, e.g. for stripe-mock.
	APIURL           string
	Timeout          time.Duration
	WebhookTolerance time.Duration
}

type stripeProvider struct {
	api        *client.API
	httpClient *http.Client
	tolerance  time.Duration
}

// ----------------- Constructor -----------------

// NewStripeProvider builds a Provider bound to one secret key. Network retries
// inside the SDK are disabled: retry policy belongs to the caller.
func NewStripeProvider(cfg StripeConfig) Provider {
	if cfg.SecretKey == "" {
		logger.L().Warn("Stripe secret key is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultStripeTimeout
	}
	if cfg.WebhookTolerance <= 0 {
		cfg.WebhookTolerance = defaultWebhookTolerance
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     logger.Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &stripeProvider{
		api:        api,
		httpClient: httpClient,
		tolerance:  cfg.WebhookTolerance,
	}
}

// ----------------- CreateIntent -----------------

func (s *stripeProvider) CreateIntent(ctx context.Context, p CreateIntentParams) (*Intent, error) {
	log := logger.FromCtx(ctx).With(
		zap.Int64("amount_minor", p.AmountMinor),
		zap.String("currency", p.Currency),
		zap.String("order_id", p.Metadata[MetaOrderID]),
	)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountMinor),
		Currency: stripe.String(p.Currency),
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.AutomaticPaymentMethods {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}
	params.Context = ctx

	log.Info("Sending payment intent request to Stripe")

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		log.Error("Stripe create intent failed", zap.Error(err))
		return nil, classify("create intent", err)
	}

	log.Info("Stripe payment intent created",
		zap.String("intent_id", pi.ID),
		zap.String("status", string(pi.Status)),
	)
	return intentFromStripe(pi), nil
}

// ----------------- RetrieveIntent -----------------

func (s *stripeProvider) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		logger.FromCtx(ctx).Error("Stripe retrieve intent failed",
			zap.String("intent_id", intentID),
			zap.Error(err),
		)
		return nil, classify("retrieve intent", err)
	}
	return intentFromStripe(pi), nil
}

// ----------------- ConfirmIntent -----------------

func (s *stripeProvider) ConfirmIntent(ctx context.Context, intentID string, p ConfirmIntentParams) (*Intent, error) {
	log := logger.FromCtx(ctx).With(zap.String("intent_id", intentID))

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(p.PaymentMethodID),
	}
	if p.ReturnURL != "" {
		params.ReturnURL = stripe.String(p.ReturnURL)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		log.Error("Stripe confirm intent failed", zap.Error(err))
		return nil, classify("confirm intent", err)
	}

	log.Info("Stripe payment intent confirmed", zap.String("status", string(pi.Status)))
	return intentFromStripe(pi), nil
}

// ----------------- CreateRefund -----------------

func (s *stripeProvider) CreateRefund(ctx context.Context, p RefundParams) (*Refund, error) {
	log := logger.FromCtx(ctx).With(zap.String("charge_id", p.ChargeID))

	params := &stripe.RefundParams{
		Charge: stripe.String(p.ChargeID),
	}
	if p.AmountMinor != nil {
		params.Amount = stripe.Int64(*p.AmountMinor)
	}
	params.Context = ctx

	r, err := s.api.Refunds.New(params)
	if err != nil {
		log.Error("Stripe refund failed", zap.Error(err))
		return nil, classify("create refund", err)
	}

	log.Info("Stripe refund created", zap.String("refund_id", r.ID))

	out := &Refund{
		ID:          r.ID,
		ChargeID:    p.ChargeID,
		AmountMinor: r.Amount,
		Currency:    string(r.Currency),
		Status:      string(r.Status),
	}
	return out, nil
}

// ----------------- Verify Signature -----------------

// VerifySignature checks a Stripe-Signature header ("t=...,v1=...") against
// the payload within the configured tolerance.
func (s *stripeProvider) VerifySignature(payload []byte, header, secret string) error {
	if secret == "" {
		return errors.New("webhook secret not configured")
	}
	return webhook.ValidatePayloadWithTolerance(payload, header, secret, s.tolerance)
}

// ----------------- helpers -----------------

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.LatestCharge != nil {
		in.LatestChargeID = pi.LatestCharge.ID
	}
	if pi.Created > 0 {
		in.CreatedAt = time.Unix(pi.Created, 0).UTC()
	}
	return in
}

// classify splits SDK errors into provider rejections and transport failures.
func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = strings.TrimSpace(string(stripeErr.Type))
		}
		return &ProviderError{
			Op:         op,
			Code:       string(stripeErr.Code),
			StatusCode: stripeErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}
	return &TransportError{Op: op, Err: err}
}
