package payment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	tests := map[string]PaymentStatus{
		"requires_payment_method": StatusPending,
		"requires_confirmation":   StatusPending,
		"requires_action":         StatusPending,
		"processing":              StatusProcessing,
		"succeeded":               StatusCompleted,
		"canceled":                StatusCancelled,
		"requires_capture":        StatusFailed,
		"":                        StatusFailed,
		"SUCCEEDED":               StatusFailed,
		"cancelled":               StatusFailed,
		" succeeded":              StatusFailed,
	}

	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, want, MapStatus(raw))
		})
	}
}

func TestMapStatus_Total(t *testing.T) {
	known := map[string]bool{
		RawRequiresPaymentMethod: true, RawRequiresConfirmation: true, RawRequiresAction: true,
		RawProcessing: true, RawSucceeded: true, RawCanceled: true,
	}
	rng := rand.New(rand.NewSource(42))
	alphabet := []byte("abcdefghijklmnopqrstuvwxyz_ ")

	for i := 0; i < 2000; i++ {
		b := make([]byte, rng.Intn(25))
		for j := range b {
			b[j] = alphabet[rng.Intn(len(alphabet))]
		}
		raw := string(b)

		got := MapStatus(raw)
		assert.Contains(t, allStatuses, got, "raw %q", raw)
		if !known[raw] {
			assert.Equal(t, StatusFailed, got, "raw %q", raw)
		}
	}
}

var allStatuses = []PaymentStatus{
	StatusPending, StatusProcessing, StatusCompleted, StatusCancelled, StatusFailed, StatusRefunded,
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	for _, s := range []PaymentStatus{StatusCompleted, StatusCancelled, StatusFailed, StatusRefunded} {
		assert.True(t, s.IsTerminal(), string(s))
	}
}
