// Package payout принимает заявку на выплату по завершённому пакету.
//
// Проверка полей (совпадение адреса кошелька, согласие с условиями) выполняется сервисом,
// чтобы текст нарушенного условия был одинаковым для всех клиентов.
package payout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Service описывает подачу заявки.
type Service interface {
	Submit(ctx context.Context, userID, packageID string, req models.PayoutSubmit) (*models.PayoutRequest, error)
}

// Handler обрабатывает POST /packages/{id}/payouts.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Заявка на выплату
// @Tags Payouts
// @Accept  json
// @Produce  json
// @Param id path string true "ID пакета"
// @Param request body models.PayoutSubmit true "Реквизиты выплаты"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Заявка уже подана"
// @Failure 422 {object} response.ErrorResponse "Нарушено условие"
// @Router /packages/{id}/payouts [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.packages.payout"
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

	var req models.PayoutSubmit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	packageID := chi.URLParam(r, "id")

	payout, err := h.service.Submit(r.Context(), userID, packageID, req)
	if err != nil {
		log.Error("failed to submit payout", slog.String("package_id", packageID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("payout submitted", slog.String("payout_id", payout.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payout": payout,
	}))
}
