package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderpay-be/internal/config"
	"orderpay-be/internal/db"
	"orderpay-be/internal/httpapi"
	"orderpay-be/internal/logger"
	"orderpay-be/internal/metrics"
	"orderpay-be/internal/middleware"
	"orderpay-be/internal/payment"
	"orderpay-be/internal/payment/webhook"
	"orderpay-be/internal/reconcile"

	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	limiterCleanup    = time.Minute
)

var (
	initDBFunc = func(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
		return db.NewDatabase(ctx, cfg.DSN())
	}
	startServerFunc = func(srv *http.Server) error {
		return srv.ListenAndServe()
	}
)

type app struct {
	router  http.Handler
	limiter *middleware.RateLimiter
	worker  *reconcile.Worker
}

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("Server exited", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.AppEnv); err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var database *sql.DB
	if cfg.DSN() != "" {
		database, err = initDBFunc(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()
	} else {
		log.Warn("No database configured, payments will not be recorded")
	}

	a := newApp(cfg, database)
	go a.limiter.Cleanup(ctx, limiterCleanup)
	if a.worker != nil {
		go a.worker.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Payment server listening", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// newApp wires the orchestrator and its callers. database may be nil.
func newApp(cfg *config.Config, database *sql.DB) *app {
	reg := metrics.NewRegistry()

	provider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:        cfg.StripeSecretKey,
		APIURL:           cfg.StripeAPIURL,
		Timeout:          cfg.ProviderTimeout,
		WebhookTolerance: cfg.WebhookTolerance,
	})
	orchestrator := payment.NewOrchestrator(provider, payment.Options{
		PublishableKey: cfg.StripePublishableKey,
		ReturnURL:      cfg.ReturnURL,
		Metrics:        reg,
	})

	var (
		repo   payment.Repository
		worker *reconcile.Worker
	)
	if database != nil {
		repo = payment.NewRepository(database)
		worker = reconcile.NewWorker(repo, orchestrator, reg, cfg.ReconcileInterval, cfg.ReconcileStaleAfter)
	}

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	webhookHandler := webhook.NewWebhookHandler(orchestrator, repo, cfg.StripeWebhookSecret)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:   httpapi.NewHandler(orchestrator, repo),
		Webhook:   webhookHandler.PaymentWebhookHandler,
		Metrics:   reg,
		Limiter:   limiter,
		JWTSecret: cfg.JWTSecret,
	})

	return &app{router: router, limiter: limiter, worker: worker}
}
