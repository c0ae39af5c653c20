// Package dealplan добавляет план в сделку.
package dealplan

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Request: план, добавляемый в сделку.
type Request struct {
	PlanID string `json:"planId" validate:"required"`
}

// Service описывает изменение состава сделки.
type Service interface {
	AddPlan(ctx context.Context, dealID, planID string) (*models.Deal, error)
}

// Handler обрабатывает POST /admin/deals/{id}/plans.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Добавить план в сделку
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID сделки"
// @Param request body Request true "План"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "План уже в сделке"
// @Router /admin/deals/{id}/plans [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.dealplan"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	dealID := chi.URLParam(r, "id")

	deal, err := h.service.AddPlan(r.Context(), dealID, req.PlanID)
	if err != nil {
		log.Error("failed to add plan to deal", slog.String("deal_id", dealID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deal": deal,
	}))
}
