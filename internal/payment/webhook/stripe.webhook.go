package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"orderpay-be/internal/logger"
	"orderpay-be/internal/payment"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "Stripe-Signature"
	provider        = "STRIPE"
	maxBodyBytes    = 64 << 10
)

// Payments is the part of the orchestrator the webhook needs.
type Payments interface {
	VerifyWebhook(body []byte, signatureHeader, secret string) bool
	GetStatus(ctx context.Context, intentID string) (*payment.PaymentResult, error)
}

type Handler struct {
	Payments Payments
	// Repo may be nil; verified events are then acknowledged without effect.
	Repo   payment.Repository
	Secret string
}

func NewWebhookHandler(payments Payments, repo payment.Repository, secret string) *Handler {
	return &Handler{
		Payments: payments,
		Repo:     repo,
		Secret:   secret,
	}
}

// PaymentWebhookHandler authenticates a provider notification and brings the
// stored payment in line with the provider's current state. Any non-2xx
// response makes the provider redeliver the event.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Nothing in the payload is trusted before this check.
	if !h.Payments.VerifyWebhook(body, r.Header.Get(SignatureHeader), h.Secret) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event payment.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	intentID := event.IntentID()
	log = log.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("intent_id", intentID),
	)

	if h.Repo == nil {
		log.Info("Webhook verified, no store configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	webhookID, duplicate, err := h.Repo.SavePaymentWebhook(ctx, provider, event.ID, event.Type, intentID, body, true)
	if err != nil {
		log.Error("Failed to store webhook", zap.Error(err))
		http.Error(w, "failed to store webhook", http.StatusInternalServerError)
		return
	}
	if duplicate {
		log.Info("Duplicate webhook ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if intentID == "" || !handled(event.Type) {
		log.Debug("Webhook not related to a payment intent")
		h.markProcessed(ctx, log, webhookID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.apply(logger.WithIntentID(ctx, intentID), &event, intentID); err != nil {
		if markErr := h.Repo.MarkWebhookFailed(ctx, webhookID, err.Error()); markErr != nil {
			log.Error("Failed to mark webhook failed", zap.Error(markErr))
		}

		// Unknown payments will never appear; do not ask for redelivery.
		if errors.Is(err, payment.ErrPaymentNotFound) {
			log.Warn("Webhook for unknown payment", zap.Error(err))
			w.WriteHeader(http.StatusOK)
			return
		}

		log.Error("Failed to process webhook", zap.Error(err))
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		return
	}

	h.markProcessed(ctx, log, webhookID)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func handled(eventType string) bool {
	return strings.HasPrefix(eventType, "payment_intent.") || eventType == "charge.refunded"
}

func (h *Handler) apply(ctx context.Context, event *payment.WebhookEvent, intentID string) error {
	existing, err := h.Repo.GetPaymentByIntent(ctx, intentID)
	if err != nil {
		return err
	}

	if event.Type == "charge.refunded" {
		return h.Repo.UpdatePaymentStatus(ctx, intentID, payment.StatusRefunded, event.Data.Object.ID, "")
	}

	// The event only says that something changed; the provider says what.
	res, err := h.Payments.GetStatus(ctx, intentID)
	if err != nil {
		return err
	}

	// A refunded intent still reads as succeeded at the provider.
	if existing.Status == payment.StatusRefunded {
		return nil
	}
	if existing.Status == res.Status && existing.ChargeID == res.ChargeID {
		return nil
	}

	logger.FromCtx(ctx).Info("Payment status changed",
		zap.String("from", string(existing.Status)),
		zap.String("to", string(res.Status)),
	)
	return h.Repo.UpdatePaymentStatus(ctx, intentID, res.Status, res.ChargeID, "")
}

func (h *Handler) markProcessed(ctx context.Context, log *zap.Logger, webhookID int64) {
	if err := h.Repo.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("Failed to mark webhook processed", zap.Error(err))
	}
}
