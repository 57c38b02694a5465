package payment

// PaymentStatus is the internal canonical status of a payment intent.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "PENDING"
	StatusProcessing PaymentStatus = "PROCESSING"
	StatusCompleted  PaymentStatus = "COMPLETED"
	StatusCancelled  PaymentStatus = "CANCELLED"
	StatusFailed     PaymentStatus = "FAILED"
	StatusRefunded   PaymentStatus = "REFUNDED"
)

// Raw provider statuses this package understands.
const (
	RawRequiresPaymentMethod = "requires_payment_method"
	RawRequiresConfirmation  = "requires_confirmation"
	RawRequiresAction        = "requires_action"
	RawProcessing            = "processing"
	RawSucceeded             = "succeeded"
	RawCanceled              = "canceled"
)

// MapStatus classifies a raw provider status. Anything unrecognized is FAILED.
func MapStatus(raw string) PaymentStatus {
	switch raw {
	case RawRequiresPaymentMethod, RawRequiresConfirmation, RawRequiresAction:
		return StatusPending
	case RawProcessing:
		return StatusProcessing
	case RawSucceeded:
		return StatusCompleted
	case RawCanceled:
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// IsTerminal reports whether the provider will not move the intent any further
// on its own. PENDING and PROCESSING are the only states reconciliation revisits.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusPending, StatusProcessing:
		return false
	default:
		return true
	}
}
