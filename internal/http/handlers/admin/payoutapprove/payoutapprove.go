// Package payoutapprove одобряет заявку на выплату и завершает пакет.
package payoutapprove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Service описывает одобрение заявки.
type Service interface {
	Approve(ctx context.Context, requestID string) (*models.PayoutRequest, error)
}

// Handler обрабатывает POST /admin/payouts/{id}/approve.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Одобрить выплату
// @Tags Admin
// @Produce  json
// @Param id path string true "ID заявки"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Заявка уже одобрена"
// @Router /admin/payouts/{id}/approve [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.payoutapprove"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	requestID := chi.URLParam(r, "id")

	payout, err := h.service.Approve(r.Context(), requestID)
	if err != nil {
		log.Error("failed to approve payout", slog.String("payout_id", requestID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("payout approved", slog.String("payout_id", requestID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payout": payout,
	}))
}
