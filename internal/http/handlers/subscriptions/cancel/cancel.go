// Package cancel отменяет регулярное соглашение пакета в конце оплаченного периода.
package cancel

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
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
)

// Service описывает отмену соглашения.
type Service interface {
	CancelSubscription(ctx context.Context, userID, packageID string) (*paymentgateway.Subscription, error)
}

// Handler обрабатывает POST /subscriptions/{id}/cancel.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отменить соглашение в конце периода
// @Tags Subscriptions
// @Produce  json
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.cancel"
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
	packageID := chi.URLParam(r, "id")

	sub, err := h.service.CancelSubscription(r.Context(), userID, packageID)
	if err != nil {
		log.Error("failed to cancel subscription", slog.String("package_id", packageID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("subscription cancellation scheduled", slog.String("package_id", packageID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriptionId":    sub.ID,
		"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
		"currentPeriodEnd":  sub.CurrentPeriodEnd,
	}))
}
