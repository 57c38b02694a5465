package reconcile

import (
	"context"
	"time"

	"orderpay-be/internal/logger"
	"orderpay-be/internal/metrics"
	"orderpay-be/internal/payment"

	"go.uber.org/zap"
)

const defaultBatchSize = 100

type StatusReader interface {
	GetStatus(ctx context.Context, intentID string) (*payment.PaymentResult, error)
}

// Worker periodically re-reads payments stuck in PENDING or PROCESSING and
// stores whatever the provider reports. The provider is the source of truth.
type Worker struct {
	repo       payment.Repository
	payments   StatusReader
	metrics    *metrics.Registry
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func NewWorker(
	repo payment.Repository,
	payments StatusReader,
	reg *metrics.Registry,
	interval time.Duration,
	staleAfter time.Duration,
) *Worker {
	return &Worker{
		repo:       repo,
		payments:   payments,
		metrics:    reg,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  defaultBatchSize,
		now:        time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log := logger.FromCtx(ctx)
	log.Info("Reconciliation worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("stale_after", w.staleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("Reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				log.Error("Reconciliation failed", zap.Error(err))
			}
		}
	}
}

// RunOnce processes one batch and returns how many payments changed status.
// Per-payment provider failures are logged and retried on the next pass.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	done := w.metrics.Track("reconcile.run")

	stale, err := w.repo.ListStalePayments(ctx, w.now().Add(-w.staleAfter), w.batchSize)
	if err != nil {
		done(err)
		return 0, err
	}
	if len(stale) == 0 {
		done(nil)
		return 0, nil
	}

	logger.FromCtx(ctx).Info("Found stale payments", zap.Int("count", len(stale)))

	updated := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			break
		}

		pctx := logger.WithIntentID(ctx, p.IntentID)
		log := logger.FromCtx(pctx)

		res, err := w.payments.GetStatus(pctx, p.IntentID)
		if err != nil {
			log.Warn("Failed to check payment status", zap.Error(err))
			w.metrics.Inc("reconcile.check_failed")
			continue
		}

		if res.Status == p.Status {
			// Touch the row so it is not picked again until it is stale again.
			if err := w.repo.UpdatePaymentStatus(pctx, p.IntentID, p.Status, res.ChargeID, ""); err != nil {
				log.Warn("Failed to refresh payment", zap.Error(err))
			}
			continue
		}

		if err := w.repo.UpdatePaymentStatus(pctx, p.IntentID, res.Status, res.ChargeID, ""); err != nil {
			log.Error("Failed to update payment status", zap.Error(err))
			continue
		}

		log.Info("Reconciled payment",
			zap.String("from", string(p.Status)),
			zap.String("to", string(res.Status)),
		)
		w.metrics.Inc("reconcile.updated")
		if res.Status.IsTerminal() {
			w.metrics.Inc("reconcile.settled")
		}
		updated++
	}

	done(ctx.Err())
	return updated, nil
}
