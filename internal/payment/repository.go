package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

const providerStripe = "STRIPE"

var ErrPaymentNotFound = errors.New("payment not found")

// Repository is the caller-side store for payment records and webhook
// deliveries. The orchestrator itself never touches it.
type Repository interface {
	SavePayment(ctx context.Context, p *Payment) error
	UpdatePaymentStatus(ctx context.Context, intentID string, status PaymentStatus, chargeID, refundID string) error
	GetPaymentByIntent(ctx context.Context, intentID string) (*Payment, error)
	ListStalePayments(ctx context.Context, updatedBefore time.Time, limit int) ([]*Payment, error)
	SavePaymentWebhook(
		ctx context.Context,
		provider string,
		eventID string,
		eventType string,
		intentID string,
		payload json.RawMessage,
		signatureValid bool,
	) (webhookID int64, isDuplicate bool, err error)

	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// PaymentFromResult flattens a result into a storable record.
func PaymentFromResult(res *PaymentResult) (*Payment, error) {
	units, err := res.Amount.MinorUnits()
	if err != nil {
		return nil, err
	}
	return &Payment{
		IntentID:      res.IntentID,
		OrderID:       res.OrderID,
		UserID:        res.UserID,
		CustomerEmail: res.CustomerEmail,
		AmountMinor:   units,
		Currency:      res.Amount.Currency,
		Status:        res.Status,
		ChargeID:      res.ChargeID,
		RefundID:      res.RefundID,
	}, nil
}

func (r *repository) SavePayment(ctx context.Context, p *Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (intent_id,
		order_id,
		user_id,
		customer_email,
		amount_minor,
		currency,
		status,
		charge_id,
		refund_id,
		provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (intent_id) DO UPDATE
		SET status = EXCLUDED.status,
		    charge_id = COALESCE(NULLIF(EXCLUDED.charge_id, ''), payments.charge_id),
		    refund_id = COALESCE(NULLIF(EXCLUDED.refund_id, ''), payments.refund_id),
		    updated_at = now()
	`,
		p.IntentID, p.OrderID, p.UserID, p.CustomerEmail, p.AmountMinor, p.Currency,
		string(p.Status), p.ChargeID, p.RefundID, providerStripe,
	)
	return err
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, intentID string, status PaymentStatus, chargeID, refundID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1,
		    charge_id = COALESCE(NULLIF($2, ''), charge_id),
		    refund_id = COALESCE(NULLIF($3, ''), refund_id),
		    updated_at = now()
		WHERE intent_id = $4
	`, string(status), chargeID, refundID, intentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

const paymentColumns = `id, intent_id, order_id, user_id, customer_email, amount_minor, currency, status, charge_id, refund_id, created_at, updated_at`

func (r *repository) GetPaymentByIntent(ctx context.Context, intentID string) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE intent_id = $1
	`, intentID)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListStalePayments returns non-terminal payments not touched since updatedBefore, oldest first.
func (r *repository) ListStalePayments(ctx context.Context, updatedBefore time.Time, limit int) ([]*Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`, pq.Array([]string{string(StatusPending), string(StatusProcessing)}), updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(s scanner) (*Payment, error) {
	var (
		p        Payment
		status   string
		chargeID sql.NullString
		refundID sql.NullString
	)
	err := s.Scan(
		&p.ID, &p.IntentID, &p.OrderID, &p.UserID, &p.CustomerEmail,
		&p.AmountMinor, &p.Currency, &status, &chargeID, &refundID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = PaymentStatus(status)
	p.ChargeID = chargeID.String
	p.RefundID = refundID.String
	return &p, nil
}

func (r *repository) SavePaymentWebhook(
	ctx context.Context,
	provider string,
	eventID string,
	eventType string,
	intentID string,
	payload json.RawMessage,
	signatureValid bool,
) (int64, bool, error) {

	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_id,
		event_type,
		intent_id,
		signature_valid,
		payload
	)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET attempts = payment_webhooks.attempts + 1
	WHERE payment_webhooks.processed_at IS NULL
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		provider,
		eventID,
		eventType,
		intentID,
		signatureValid,
		string(payload),
	).Scan(&id)

	if err != nil {
		// Already processed → idempotent success. Unprocessed redeliveries
		// return their existing id so they can be retried.
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(
	ctx context.Context,
	webhookID int64,
) error {

	const q = `
	UPDATE payment_webhooks
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(
	ctx context.Context,
	webhookID int64,
	reason string,
) error {

	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
