package payment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"orderpay-be/internal/logger"
	"orderpay-be/internal/metrics"
	"orderpay-be/internal/money"

	"go.uber.org/zap"
)

const intentDescription = "E-commerce order payment"

type Options struct {
	// PublishableKey is handed to browsers; it is never used server-side.
	PublishableKey string
	// ReturnURL is where the provider sends the customer after authentication.
	ReturnURL string
	Metrics   *metrics.Registry
	Now       func() time.Time
}

// Orchestrator drives payment intents through the provider. It keeps no
// mutable state and is safe for concurrent use.
type Orchestrator struct {
	provider       Provider
	publishableKey string
	returnURL      string
	metrics        *metrics.Registry
	now            func() time.Time
}

func NewOrchestrator(provider Provider, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		provider:       provider,
		publishableKey: opts.PublishableKey,
		returnURL:      opts.ReturnURL,
		metrics:        opts.Metrics,
		now:            opts.Now,
	}
}

func (o *Orchestrator) PublishableKey() string {
	return o.publishableKey
}

// CreateIntent opens a new intent for an order. The result is PENDING and
// carries the client secret needed to finish authorization client-side.
func (o *Orchestrator) CreateIntent(ctx context.Context, req CreateIntentRequest) (*PaymentResult, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, &ValidationError{Field: "order_id", Reason: "must not be empty"}
	}
	currency, err := money.NormalizeCurrency(req.Amount.Currency)
	if err != nil {
		return nil, &ValidationError{Field: "currency", Reason: err.Error()}
	}
	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	units, err := req.Amount.MinorUnits()
	if err != nil {
		return nil, &ValidationError{Field: "amount", Reason: err.Error()}
	}
	if units <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "rounds to zero minor units"}
	}

	log := logger.FromCtx(ctx).With(
		zap.String("order_id", req.OrderID),
		zap.String("user_id", req.UserID),
	)

	params := CreateIntentParams{
		AmountMinor: units,
		Currency:    strings.ToLower(currency),
		Description: intentDescription,
		Metadata: map[string]string{
			MetaOrderID:       req.OrderID,
			MetaUserID:        req.UserID,
			MetaCustomerEmail: req.CustomerEmail,
		},
		AutomaticPaymentMethods: true,
		IdempotencyKey:          req.IdempotencyKey,
	}

	done := o.metrics.Track("provider.create_intent")
	intent, err := o.provider.CreateIntent(ctx, params)
	done(err)
	if err != nil {
		log.Error("Failed to create payment intent", zap.Error(err))
		return nil, err
	}

	now := o.now()
	res := &PaymentResult{
		IntentID:      intent.ID,
		ClientSecret:  intent.ClientSecret,
		Status:        StatusPending,
		RawStatus:     intent.Status,
		Amount:        money.FromMinorUnits(units, currency),
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		CustomerEmail: req.CustomerEmail,
		CreatedAt:     &now,
		UpdatedAt:     now,
	}
	res.NextAction = nextAction(res)

	log.Info("Created payment intent",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_minor", units),
	)
	return res, nil
}

// ConfirmIntent attaches a payment method and confirms the intent. Amount and
// currency in the result come from the provider's record.
func (o *Orchestrator) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*PaymentResult, error) {
	if err := requireID("intent_id", intentID); err != nil {
		return nil, err
	}
	if err := requireID("payment_method_id", paymentMethodID); err != nil {
		return nil, err
	}

	ctx = logger.WithIntentID(ctx, intentID)
	log := logger.FromCtx(ctx)

	if _, err := o.retrieve(ctx, intentID); err != nil {
		return nil, err
	}

	done := o.metrics.Track("provider.confirm_intent")
	confirmed, err := o.provider.ConfirmIntent(ctx, intentID, ConfirmIntentParams{
		PaymentMethodID: paymentMethodID,
		ReturnURL:       o.returnURL,
	})
	done(err)
	if err != nil {
		log.Error("Failed to confirm payment intent", zap.Error(err))
		return nil, err
	}

	res := o.resultFromIntent(confirmed)
	log.Info("Payment confirmed",
		zap.String("status", string(res.Status)),
		zap.String("provider_status", confirmed.Status),
	)
	return res, nil
}

// GetStatus re-reads the intent from the provider. It never mutates anything
// and may be called as often as needed.
func (o *Orchestrator) GetStatus(ctx context.Context, intentID string) (*PaymentResult, error) {
	if err := requireID("intent_id", intentID); err != nil {
		return nil, err
	}
	ctx = logger.WithIntentID(ctx, intentID)

	intent, err := o.retrieve(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return o.resultFromIntent(intent), nil
}

// Refund returns money for a succeeded intent. A nil amount refunds in full.
// Intents that have not succeeded are rejected without a refund call.
func (o *Orchestrator) Refund(ctx context.Context, intentID string, amount *money.Money) (*PaymentResult, error) {
	if err := requireID("intent_id", intentID); err != nil {
		return nil, err
	}
	if amount != nil && !amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	ctx = logger.WithIntentID(ctx, intentID)
	log := logger.FromCtx(ctx)

	intent, err := o.retrieve(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if intent.Status != RawSucceeded {
		log.Warn("Refund rejected, intent has not succeeded", zap.String("provider_status", intent.Status))
		return nil, &PreconditionError{
			IntentID:  intentID,
			RawStatus: intent.Status,
			Reason:    "cannot refund a payment that has not succeeded",
		}
	}
	if intent.LatestChargeID == "" {
		return nil, &PreconditionError{
			IntentID:  intentID,
			RawStatus: intent.Status,
			Reason:    "intent has no charge to refund",
		}
	}

	original := money.FromMinorUnits(intent.AmountMinor, intent.Currency)
	refunded := original

	params := RefundParams{ChargeID: intent.LatestChargeID}
	if amount != nil {
		if !strings.EqualFold(amount.Currency, intent.Currency) {
			return nil, &ValidationError{
				Field:  "currency",
				Reason: "refund currency " + amount.Currency + " does not match payment currency " + original.Currency,
			}
		}
		units, err := amount.MinorUnits()
		if err != nil {
			return nil, &ValidationError{Field: "amount", Reason: err.Error()}
		}
		if units <= 0 {
			return nil, &ValidationError{Field: "amount", Reason: "rounds to zero minor units"}
		}
		refunded = money.FromMinorUnits(units, intent.Currency)
		if refunded.GreaterThan(original) {
			return nil, &ValidationError{Field: "amount", Reason: "exceeds the payment amount " + original.String()}
		}
		params.AmountMinor = &units
	}

	done := o.metrics.Track("provider.create_refund")
	refund, err := o.provider.CreateRefund(ctx, params)
	done(err)
	if err != nil {
		log.Error("Failed to refund payment", zap.Error(err))
		return nil, err
	}

	res := o.resultFromIntent(intent)
	res.Status = StatusRefunded
	res.Amount = refunded
	res.RefundID = refund.ID
	res.NextAction = ""

	log.Info("Refund created",
		zap.String("refund_id", refund.ID),
		zap.String("amount", refunded.String()),
	)
	return res, nil
}

// VerifyWebhook reports whether body was signed by the provider with secret.
// Every failure, including an unparseable payload, is reported as false.
func (o *Orchestrator) VerifyWebhook(body []byte, signatureHeader, secret string) bool {
	log := logger.L()

	if len(body) == 0 || signatureHeader == "" || secret == "" {
		log.Warn("Rejected webhook with missing body, signature or secret")
		o.metrics.Inc("webhook.rejected")
		return false
	}

	if err := o.provider.VerifySignature(body, signatureHeader, secret); err != nil {
		log.Warn("Invalid webhook signature", zap.Error(err))
		o.metrics.Inc("webhook.rejected")
		return false
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" {
		log.Warn("Signed webhook payload is not an event", zap.Error(err))
		o.metrics.Inc("webhook.rejected")
		return false
	}

	o.metrics.Inc("webhook.accepted")
	return true
}

func (o *Orchestrator) retrieve(ctx context.Context, intentID string) (*Intent, error) {
	done := o.metrics.Track("provider.retrieve_intent")
	intent, err := o.provider.RetrieveIntent(ctx, intentID)
	done(err)
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to retrieve payment intent", zap.Error(err))
		return nil, err
	}
	return intent, nil
}

func (o *Orchestrator) resultFromIntent(in *Intent) *PaymentResult {
	res := &PaymentResult{
		IntentID:      in.ID,
		Status:        MapStatus(in.Status),
		RawStatus:     in.Status,
		Amount:        money.FromMinorUnits(in.AmountMinor, in.Currency),
		OrderID:       in.Metadata[MetaOrderID],
		UserID:        in.Metadata[MetaUserID],
		CustomerEmail: in.Metadata[MetaCustomerEmail],
		ChargeID:      in.LatestChargeID,
		UpdatedAt:     o.now(),
	}
	if !in.CreatedAt.IsZero() {
		created := in.CreatedAt
		res.CreatedAt = &created
	}
	res.NextAction = nextAction(res)
	return res
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}
