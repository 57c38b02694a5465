package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"orderpay-be/internal/auth"
	"orderpay-be/internal/logger"
	"orderpay-be/internal/money"
	"orderpay-be/internal/payment"
	"orderpay-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IdempotencyHeader is forwarded to the provider on intent creation.
const IdempotencyHeader = "Idempotency-Key"

type Payments interface {
	CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.PaymentResult, error)
	ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*payment.PaymentResult, error)
	GetStatus(ctx context.Context, intentID string) (*payment.PaymentResult, error)
	Refund(ctx context.Context, intentID string, amount *money.Money) (*payment.PaymentResult, error)
	PublishableKey() string
}

type Handler struct {
	payments Payments
	repo     payment.Repository
}

// NewHandler wires the payment API. repo may be nil, in which case results
// are not recorded.
func NewHandler(payments Payments, repo payment.Repository) *Handler {
	return &Handler{payments: payments, repo: repo}
}

type createIntentRequest struct {
	OrderID       string `json:"order_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
}

type confirmIntentRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

type refundRequest struct {
	Amount   *string `json:"amount"`
	Currency *string `json:"currency"`
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := auth.UserFrom(ctx)

	var body createIntentRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := money.Parse(body.Amount, body.Currency)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	email := body.CustomerEmail
	if email == "" {
		email = user.Email
	}

	res, err := h.payments.CreateIntent(ctx, payment.CreateIntentRequest{
		OrderID:        body.OrderID,
		UserID:         user.ID,
		CustomerEmail:  email,
		Amount:         amount,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if h.repo != nil {
		h.save(ctx, res)
	}
	utils.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	intentID := chi.URLParam(r, "id")

	var body confirmIntentRequest
	if err := utils.DecodeJSON(w, r, &body); err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.owns(w, r, intentID) {
		return
	}

	res, err := h.payments.ConfirmIntent(ctx, intentID, body.PaymentMethodID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	h.record(ctx, res)
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	intentID := chi.URLParam(r, "id")

	res, err := h.payments.GetStatus(ctx, intentID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if !sameUser(ctx, res) {
		utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
		return
	}

	h.record(ctx, res)
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	intentID := chi.URLParam(r, "id")

	var body refundRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(w, r, &body); err != nil {
			utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if !h.owns(w, r, intentID) {
		return
	}

	var amount *money.Money
	if body.Amount != nil {
		m, err := money.Parse(*body.Amount, utils.PtrString(body.Currency))
		if err != nil {
			utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		amount = &m
	}

	res, err := h.payments.Refund(ctx, intentID, amount)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	h.record(ctx, res)
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"publishable_key": h.payments.PublishableKey(),
	})
}

// owns reports whether the intent belongs to the caller, writing the error
// response when it does not. Without a repository the provider metadata is
// the record of ownership.
func (h *Handler) owns(w http.ResponseWriter, r *http.Request, intentID string) bool {
	if strings.TrimSpace(intentID) == "" {
		return true
	}

	ctx := r.Context()
	if h.repo == nil {
		res, err := h.payments.GetStatus(ctx, intentID)
		if err != nil {
			writeError(ctx, w, err)
			return false
		}
		if !sameUser(ctx, res) {
			utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
			return false
		}
		return true
	}

	p, err := h.repo.GetPaymentByIntent(ctx, intentID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
		return false
	}
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to load payment", zap.String("intent_id", intentID), zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
		return false
	}

	user, _ := auth.UserFrom(ctx)
	if p.UserID != user.ID {
		utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
		return false
	}
	return true
}

func sameUser(ctx context.Context, res *payment.PaymentResult) bool {
	user, _ := auth.UserFrom(ctx)
	return res.UserID == "" || res.UserID == user.ID
}

// record stores the new status of an existing payment. Failures are logged:
// the provider call already happened and its result is still returned.
func (h *Handler) record(ctx context.Context, res *payment.PaymentResult) {
	if h.repo == nil {
		return
	}
	err := h.repo.UpdatePaymentStatus(ctx, res.IntentID, res.Status, res.ChargeID, res.RefundID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		h.save(ctx, res)
		return
	}
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to record payment status",
			zap.String("intent_id", res.IntentID),
			zap.Error(err),
		)
	}
}

func (h *Handler) save(ctx context.Context, res *payment.PaymentResult) {
	p, err := payment.PaymentFromResult(res)
	if err == nil {
		err = h.repo.SavePayment(ctx, p)
	}
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to save payment",
			zap.String("intent_id", res.IntentID),
			zap.Error(err),
		)
	}
}

// writeError maps orchestrator errors onto HTTP statuses.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrValidation):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, payment.ErrPrecondition):
		utils.WriteJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payment.ErrProvider):
		var pe *payment.ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
			utils.WriteJSONError(w, "payment not found", http.StatusNotFound)
			return
		}
		utils.WriteJSONError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, payment.ErrTransport):
		utils.WriteJSONError(w, "payment provider unavailable", http.StatusGatewayTimeout)
	default:
		logger.FromCtx(ctx).Error("Unexpected payment error", zap.Error(err))
		utils.WriteJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
