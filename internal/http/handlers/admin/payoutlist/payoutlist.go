// Package payoutlist отдаёт заявки на выплату, ожидающие одобрения.
package payoutlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Service описывает чтение заявок.
type Service interface {
	ListPending(ctx context.Context) ([]*models.PayoutRequest, error)
}

// Handler обрабатывает GET /admin/payouts.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Заявки на выплату
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response
// @Router /admin/payouts [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.payoutlist"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payouts, err := h.service.ListPending(r.Context())
	if err != nil {
		log.Error("failed to list payouts", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payouts": payouts,
	}))
}
