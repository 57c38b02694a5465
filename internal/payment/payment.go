// internal/payment/payment.go
package payment

import (
	"context"
	"time"
)

// Metadata keys used to correlate a provider intent with the order.
const (
	MetaOrderID       = "orderId"
	MetaUserID        = "userId"
	MetaCustomerEmail = "customerEmail"
)

// Provider is the capability the orchestrator needs from a card processor.
// Implementations return *ProviderError or *TransportError on failure.
type Provider interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID string, params ConfirmIntentParams) (*Intent, error)
	CreateRefund(ctx context.Context, params RefundParams) (*Refund, error)
	VerifySignature(payload []byte, header, secret string) error
}

type CreateIntentParams struct {
	AmountMinor int64
	// Currency is the lower-case ISO code.
	Currency                string
	Description             string
	Metadata                map[string]string
	AutomaticPaymentMethods bool
	IdempotencyKey          string
}

type ConfirmIntentParams struct {
	PaymentMethodID string
	ReturnURL       string
}

type RefundParams struct {
	ChargeID string
	// AmountMinor is nil for a full refund.
	AmountMinor *int64
}

// Intent is the provider's authoritative view of a payment intent.
type Intent struct {
	ID             string
	ClientSecret   string
	AmountMinor    int64
	Currency       string
	Status         string
	Metadata       map[string]string
	LatestChargeID string
	CreatedAt      time.Time
}

type Refund struct {
	ID          string
	ChargeID    string
	AmountMinor int64
	Currency    string
	Status      string
}
