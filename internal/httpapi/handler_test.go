package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orderpay-be/internal/metrics"
	"orderpay-be/internal/money"
	"orderpay-be/internal/payment"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) result(args mock.Arguments) (*payment.PaymentResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PaymentResult), args.Error(1)
}

func (m *MockPayments) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.PaymentResult, error) {
	return m.result(m.Called(ctx, req))
}

func (m *MockPayments) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*payment.PaymentResult, error) {
	return m.result(m.Called(ctx, intentID, paymentMethodID))
}

func (m *MockPayments) GetStatus(ctx context.Context, intentID string) (*payment.PaymentResult, error) {
	return m.result(m.Called(ctx, intentID))
}

func (m *MockPayments) Refund(ctx context.Context, intentID string, amount *money.Money) (*payment.PaymentResult, error) {
	return m.result(m.Called(ctx, intentID, amount))
}

func (m *MockPayments) PublishableKey() string {
	return m.Called().String(0)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SavePayment(ctx context.Context, p *payment.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockRepository) UpdatePaymentStatus(ctx context.Context, intentID string, status payment.PaymentStatus, chargeID, refundID string) error {
	return m.Called(ctx, intentID, status, chargeID, refundID).Error(0)
}

func (m *MockRepository) GetPaymentByIntent(ctx context.Context, intentID string) (*payment.Payment, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockRepository) ListStalePayments(ctx context.Context, updatedBefore time.Time, limit int) ([]*payment.Payment, error) {
	args := m.Called(ctx, updatedBefore, limit)
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

func (m *MockRepository) SavePaymentWebhook(ctx context.Context, provider, eventID, eventType, intentID string, payload json.RawMessage, signatureValid bool) (int64, bool, error) {
	args := m.Called(ctx, provider, eventID, eventType, intentID, payload, signatureValid)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockRepository) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	return m.Called(ctx, webhookID).Error(0)
}

func (m *MockRepository) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	return m.Called(ctx, webhookID, reason).Error(0)
}

const jwtSecret = "test-secret"

func bearer(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   "buyer@example.com",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

type testServer struct {
	payments *MockPayments
	repo     *MockRepository
	router   http.Handler
}

func newTestServer(withRepo bool) *testServer {
	ts := &testServer{payments: new(MockPayments), repo: new(MockRepository)}
	var repo payment.Repository
	if withRepo {
		repo = ts.repo
	}
	ts.router = NewRouter(RouterConfig{
		Handler: NewHandler(ts.payments, repo),
		Webhook: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("webhook received"))
		},
		Metrics:   metrics.NewRegistry(),
		JWTSecret: jwtSecret,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("Authorization", bearer(t, user))
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicRoutes(t *testing.T) {
	ts := newTestServer(false)

	t.Run("Health", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})

	t.Run("Metrics", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
	})

	t.Run("Webhook", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/webhook/payment", "{}", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "webhook received", w.Body.String())
	})

	t.Run("Config", func(t *testing.T) {
		ts.payments.On("PublishableKey").Return("pk_test_1").Once()
		w := ts.do(t, http.MethodGet, "/payments/config", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"publishable_key":"pk_test_1"}`, w.Body.String())
	})

	t.Run("PaymentsRequireUser", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/payments/intents", `{}`, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		ts.payments.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
	})
}

func TestHandler_CreateIntent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(true)
		res := &payment.PaymentResult{
			IntentID:     "pi_1",
			ClientSecret: "pi_1_secret",
			Status:       payment.StatusPending,
			Amount:       money.MustParse("49.99", "USD"),
			OrderID:      "ord_1",
			UserID:       "u1",
		}
		ts.payments.On("CreateIntent", mock.Anything, mock.MatchedBy(func(req payment.CreateIntentRequest) bool {
			return req.OrderID == "ord_1" &&
				req.UserID == "u1" &&
				req.CustomerEmail == "buyer@example.com" &&
				req.Amount.Equal(money.MustParse("49.99", "USD"))
		})).Return(res, nil)
		ts.repo.On("SavePayment", mock.Anything, mock.MatchedBy(func(p *payment.Payment) bool {
			return p.IntentID == "pi_1" && p.AmountMinor == 4999 && p.Status == payment.StatusPending
		})).Return(nil)

		w := ts.do(t, http.MethodPost, "/payments/intents", `{"order_id":"ord_1","amount":"49.99","currency":"usd"}`, "u1")

		assert.Equal(t, http.StatusCreated, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "pi_1", body["payment_intent_id"])
		assert.Equal(t, "pi_1_secret", body["client_secret"])
		assert.Equal(t, "PENDING", body["status"])
		ts.payments.AssertExpectations(t)
		ts.repo.AssertExpectations(t)
	})

	t.Run("IdempotencyKeyForwarded", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("CreateIntent", mock.Anything, mock.MatchedBy(func(req payment.CreateIntentRequest) bool {
			return req.IdempotencyKey == "key-1"
		})).Return(&payment.PaymentResult{IntentID: "pi_2", Amount: money.MustParse("1", "USD")}, nil)

		req := httptest.NewRequest(http.MethodPost, "/payments/intents", strings.NewReader(`{"order_id":"o","amount":"1","currency":"USD"}`))
		req.Header.Set("Authorization", bearer(t, "u1"))
		req.Header.Set(IdempotencyHeader, "key-1")
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		ts.payments.AssertExpectations(t)
	})

	t.Run("BadAmount", func(t *testing.T) {
		ts := newTestServer(false)
		w := ts.do(t, http.MethodPost, "/payments/intents", `{"order_id":"o","amount":"abc","currency":"USD"}`, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		ts.payments.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
	})

	t.Run("ValidationError", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("CreateIntent", mock.Anything, mock.Anything).
			Return(nil, &payment.ValidationError{Field: "amount", Reason: "must be greater than zero"})

		w := ts.do(t, http.MethodPost, "/payments/intents", `{"order_id":"o","amount":"0","currency":"USD"}`, "u1")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "must be greater than zero")
	})
}

func TestHandler_ConfirmIntent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(true)
		ts.repo.On("GetPaymentByIntent", mock.Anything, "pi_1").Return(&payment.Payment{IntentID: "pi_1", UserID: "u1"}, nil)
		ts.payments.On("ConfirmIntent", mock.Anything, "pi_1", "pm_card_visa").
			Return(&payment.PaymentResult{IntentID: "pi_1", Status: payment.StatusCompleted, ChargeID: "ch_1"}, nil)
		ts.repo.On("UpdatePaymentStatus", mock.Anything, "pi_1", payment.StatusCompleted, "ch_1", "").Return(nil)

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/confirm", `{"payment_method_id":"pm_card_visa"}`, "u1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"COMPLETED"`)
		ts.repo.AssertExpectations(t)
	})

	t.Run("OtherUsersIntent", func(t *testing.T) {
		ts := newTestServer(true)
		ts.repo.On("GetPaymentByIntent", mock.Anything, "pi_1").Return(&payment.Payment{IntentID: "pi_1", UserID: "u2"}, nil)

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/confirm", `{"payment_method_id":"pm_card_visa"}`, "u1")

		assert.Equal(t, http.StatusNotFound, w.Code)
		ts.payments.AssertNotCalled(t, "ConfirmIntent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("OtherUsersIntentWithoutStore", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(&payment.PaymentResult{IntentID: "pi_1", UserID: "u2"}, nil)

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/confirm", `{"payment_method_id":"pm_card_visa"}`, "u1")

		assert.Equal(t, http.StatusNotFound, w.Code)
		ts.payments.AssertNotCalled(t, "ConfirmIntent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ProviderDeclined", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(&payment.PaymentResult{IntentID: "pi_1", UserID: "u1"}, nil)
		ts.payments.On("ConfirmIntent", mock.Anything, "pi_1", "pm_card_chargeDeclined").
			Return(nil, &payment.ProviderError{Op: "confirm intent", Code: "card_declined", StatusCode: 402, Message: "Your card was declined."})

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/confirm", `{"payment_method_id":"pm_card_chargeDeclined"}`, "u1")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "Your card was declined.")
	})
}

func TestHandler_GetStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(true)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(&payment.PaymentResult{IntentID: "pi_1", Status: payment.StatusProcessing, UserID: "u1"}, nil)
		ts.repo.On("UpdatePaymentStatus", mock.Anything, "pi_1", payment.StatusProcessing, "", "").Return(payment.ErrPaymentNotFound)
		ts.repo.On("SavePayment", mock.Anything, mock.Anything).Return(nil)

		w := ts.do(t, http.MethodGet, "/payments/intents/pi_1", "", "u1")

		assert.Equal(t, http.StatusOK, w.Code)
		ts.repo.AssertExpectations(t)
	})

	t.Run("OtherUsersIntent", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(&payment.PaymentResult{IntentID: "pi_1", UserID: "u2"}, nil)

		w := ts.do(t, http.MethodGet, "/payments/intents/pi_1", "", "u1")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("UnknownAtProvider", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_x").
			Return(nil, &payment.ProviderError{Op: "retrieve intent", Code: "resource_missing", StatusCode: 404})

		w := ts.do(t, http.MethodGet, "/payments/intents/pi_x", "", "u1")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Timeout", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(nil, &payment.TransportError{Op: "retrieve intent", Err: errors.New("deadline exceeded")})

		w := ts.do(t, http.MethodGet, "/payments/intents/pi_1", "", "u1")

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})
}

func TestHandler_Refund(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(&payment.PaymentResult{IntentID: "pi_1", UserID: "u1"}, nil)
		ts.payments.On("Refund", mock.Anything, "pi_1", (*money.Money)(nil)).
			Return(&payment.PaymentResult{IntentID: "pi_1", Status: payment.StatusRefunded, RefundID: "re_1"}, nil)

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/refund", "", "u1")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"refund_id":"re_1"`)
	})

	t.Run("Partial", func(t *testing.T) {
		ts := newTestServer(true)
		ts.repo.On("GetPaymentByIntent", mock.Anything, "pi_1").Return(&payment.Payment{IntentID: "pi_1", UserID: "u1"}, nil)
		ts.payments.On("Refund", mock.Anything, "pi_1", mock.MatchedBy(func(m *money.Money) bool {
			return m != nil && m.Equal(money.MustParse("10.00", "USD"))
		})).Return(&payment.PaymentResult{IntentID: "pi_1", Status: payment.StatusRefunded, RefundID: "re_2"}, nil)
		ts.repo.On("UpdatePaymentStatus", mock.Anything, "pi_1", payment.StatusRefunded, "", "re_2").Return(nil)

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/refund", `{"amount":"10.00","currency":"USD"}`, "u1")

		assert.Equal(t, http.StatusOK, w.Code)
		ts.payments.AssertExpectations(t)
		ts.repo.AssertExpectations(t)
	})

	t.Run("NotSucceeded", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(&payment.PaymentResult{IntentID: "pi_1", UserID: "u1"}, nil)
		ts.payments.On("Refund", mock.Anything, "pi_1", (*money.Money)(nil)).
			Return(nil, &payment.PreconditionError{IntentID: "pi_1", RawStatus: "processing", Reason: "cannot refund a payment that has not succeeded"})

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/refund", "", "u1")

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("OtherUsersIntentWithoutStore", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(&payment.PaymentResult{IntentID: "pi_1", UserID: "u2"}, nil)

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/refund", "", "u1")

		assert.Equal(t, http.StatusNotFound, w.Code)
		ts.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("OwnershipLookupTimesOut", func(t *testing.T) {
		ts := newTestServer(false)
		ts.payments.On("GetStatus", mock.Anything, "pi_1").
			Return(nil, &payment.TransportError{Op: "retrieve intent", Err: errors.New("deadline exceeded")})

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_1/refund", "", "u1")

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		ts.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownPayment", func(t *testing.T) {
		ts := newTestServer(true)
		ts.repo.On("GetPaymentByIntent", mock.Anything, "pi_9").Return(nil, payment.ErrPaymentNotFound)

		w := ts.do(t, http.MethodPost, "/payments/intents/pi_9/refund", "", "u1")

		assert.Equal(t, http.StatusNotFound, w.Code)
		ts.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})
}
