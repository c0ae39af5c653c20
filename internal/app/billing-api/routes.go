// Package billingapi собирает HTTP API биллинга: вебхук шлюза, пользовательские и административные маршруты.
package billingapi

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/assign"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/dashboard"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/dealplan"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/payoutapprove"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/payoutlist"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/plancreate"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/planremove"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/admin/remove"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/deals/deallist"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/packages/history"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/packages/list"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/packages/payout"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/packages/settle"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/paymentmethods/pmattach"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/paymentmethods/pmdefault"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/paymentmethods/pmlist"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/payments/paymentlist"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/subscriptions/cancel"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/subscriptions/changeplan"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/subscriptions/subscribe"
	"github.com/magabrotheeeer/subscription-billing/internal/http/handlers/webhook"
	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
)

// Services: всё, что нужно маршрутам.
type Services struct {
	Billing        billingService
	Payouts        payoutService
	Plans          planService
	Deals          dealService
	PaymentMethods paymentMethodService
	Tokens         middlewarectx.TokenParser
	Events         webhook.Parser
	DB             health.Pinger
}

type billingService interface {
	webhook.Service
	list.Service
	history.Service
	settle.Service
	paymentlist.Service
	subscribe.Service
	cancel.Service
	changeplan.Service
	assign.Service
	remove.Service
	dashboard.Service
}

type payoutService interface {
	payout.Service
	payoutlist.Service
	payoutapprove.Service
}

type planService interface {
	plancreate.Service
	planremove.Service
}

type dealService interface {
	deallist.Service
	dealplan.Service
}

type paymentMethodService interface {
	pmlist.Service
	pmattach.Service
	pmdefault.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg config.HTTPServer, s Services) error {
	dashboardHandler, err := dashboard.New(logger, s.Billing)
	if err != nil {
		return err
	}

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.MetricsMiddleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Вебхук шлюза проверяется подписью, без JWT
		r.Post("/webhooks/stripe", webhook.New(logger, s.Events, s.Billing).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))
			r.Use(middlewarectx.JWTMiddleware(s.Tokens, logger))

			r.Get("/packages", list.New(logger, s.Billing).ServeHTTP)
			r.Get("/packages/{id}/history", history.New(logger, s.Billing).ServeHTTP)
			r.Post("/packages/{id}/settle", settle.New(logger, s.Billing).ServeHTTP)
			r.Post("/packages/{id}/payouts", payout.New(logger, s.Payouts).ServeHTTP)

			r.Post("/subscriptions", subscribe.New(logger, s.Billing).ServeHTTP)
			r.Post("/subscriptions/{id}/cancel", cancel.New(logger, s.Billing).ServeHTTP)
			r.Post("/subscriptions/{id}/plan", changeplan.New(logger, s.Billing).ServeHTTP)

			r.Get("/payments", paymentlist.New(logger, s.Billing).ServeHTTP)

			r.Get("/payment-methods", pmlist.New(logger, s.PaymentMethods).ServeHTTP)
			r.Post("/payment-methods", pmattach.New(logger, s.PaymentMethods).ServeHTTP)
			r.Put("/payment-methods/{pm}/default", pmdefault.New(logger, s.PaymentMethods).ServeHTTP)

			r.Get("/deals", deallist.New(logger, s.Deals).ServeHTTP)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly)

				r.Post("/packages", assign.New(logger, s.Billing).ServeHTTP)
				r.Delete("/packages/{id}", remove.New(logger, s.Billing).ServeHTTP)
				r.Patch("/packages/{id}/dashboard", dashboardHandler.ServeHTTP)
				r.Post("/deals/{id}/plans", dealplan.New(logger, s.Deals).ServeHTTP)
				r.Get("/payouts", payoutlist.New(logger, s.Payouts).ServeHTTP)
				r.Post("/payouts/{id}/approve", payoutapprove.New(logger, s.Payouts).ServeHTTP)
				r.Post("/plans", plancreate.New(logger, s.Plans).ServeHTTP)
				r.Delete("/plans/{id}", planremove.New(logger, s.Plans).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, s.DB).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
	return nil
}
