package payment

import (
	"time"

	"orderpay-be/internal/money"
)

type CreateIntentRequest struct {
	OrderID       string
	UserID        string
	CustomerEmail string
	Amount        money.Money
	// IdempotencyKey is forwarded to the provider when set; nothing is generated.
	IdempotencyKey string
}

// PaymentResult is what every orchestrator operation hands back to the caller.
type PaymentResult struct {
	IntentID      string        `json:"payment_intent_id"`
	ClientSecret  string        `json:"client_secret,omitempty"`
	Status        PaymentStatus `json:"status"`
	RawStatus     string        `json:"provider_status,omitempty"`
	NextAction    string        `json:"next_action,omitempty"`
	Amount        money.Money   `json:"amount"`
	OrderID       string        `json:"order_id,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	ChargeID      string        `json:"charge_id,omitempty"`
	RefundID      string        `json:"refund_id,omitempty"`
	CreatedAt     *time.Time    `json:"created_at,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Payment is the caller-side record of a PaymentResult kept by Repository.
type Payment struct {
	ID            int64
	IntentID      string
	OrderID       string
	UserID        string
	CustomerEmail string
	AmountMinor   int64
	Currency      string
	Status        PaymentStatus
	ChargeID      string
	RefundID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WebhookEvent is the minimal envelope of a provider notification.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Object string `json:"object"`
			Status string `json:"status"`

			// PaymentIntent is set on charge and refund objects.
			PaymentIntent string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

// IntentID returns the payment intent the event is about, or "".
func (e *WebhookEvent) IntentID() string {
	obj := e.Data.Object
	if obj.Object == "payment_intent" {
		return obj.ID
	}
	return obj.PaymentIntent
}
