// Package pmdefault делает карту пользователя картой по умолчанию.
package pmdefault

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
)

// Service описывает смену карты по умолчанию.
type Service interface {
	SetDefault(ctx context.Context, userID, paymentMethodRef string) error
}

// Handler обрабатывает PUT /payment-methods/{pm}/default.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Карта по умолчанию
// @Tags PaymentMethods
// @Produce  json
// @Param pm path string true "ID карты в шлюзе"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /payment-methods/{pm}/default [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.paymentmethods.setdefault"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	pmID := chi.URLParam(r, "pm")

	if err := h.service.SetDefault(r.Context(), userID, pmID); err != nil {
		log.Error("failed to set default payment method", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"defaultPaymentMethod": pmID,
	}))
}
