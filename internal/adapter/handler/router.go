package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/rl1809/factory-orders/internal/core/service"
)

type RouterConfig struct {
	AllowedOrigins []string
	// LoginRatePerMinute caps login attempts per client IP; 0 disables it.
	LoginRatePerMinute int
}

// NewRouter mounts every HTTP route behind the shared middleware chain.
func NewRouter(h *HTTPHandler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.With(RateLimitByIP(cfg.LoginRatePerMinute)).Post("/auth/login", h.Login)
		r.With(h.RequireAuth).Get("/auth/me", h.Me)

		r.With(h.OptionalAuth).Get("/products/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.With(h.RequireOperation(service.OpCreateOrder)).Post("/orders", h.CreateOrder)
			r.With(h.RequireOperation(service.OpViewOrder)).Get("/orders/{id}", h.GetOrder)
			r.With(h.RequireOperation(service.OpUpdateOrderStatus)).Patch("/orders/{id}/status", h.UpdateOrderStatus)
			r.With(h.RequireOperation(service.OpUpdateOrderStatus)).Put("/orders/{id}/status", h.UpdateOrderStatus)

			r.With(h.RequireOperation(service.OpAdjustStock)).Post("/inventory/{productID}/adjustments", h.AdjustStock)
			r.With(h.RequireOperation(service.OpViewLedger)).Get("/inventory/{productID}/transactions", h.History)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(r)
}
