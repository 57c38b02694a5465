package httpapi

import (
	"net/http"

	"orderpay-be/internal/logger"
	"orderpay-be/internal/metrics"
	"orderpay-be/internal/middleware"
	"orderpay-be/internal/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Handler   *Handler
	Webhook   http.HandlerFunc
	Metrics   *metrics.Registry
	Limiter   *middleware.RateLimiter
	JWTSecret string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Authenticate(cfg.JWTSecret))
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, cfg.Metrics.Snapshot())
	})

	r.Post("/webhook/payment", cfg.Webhook)

	r.Route("/payments", func(r chi.Router) {
		r.Get("/config", cfg.Handler.Config)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Post("/intents", cfg.Handler.CreateIntent)
			r.Get("/intents/{id}", cfg.Handler.GetStatus)
			r.Post("/intents/{id}/confirm", cfg.Handler.ConfirmIntent)
			r.Post("/intents/{id}/refund", cfg.Handler.Refund)
		})
	})

	return r
}
