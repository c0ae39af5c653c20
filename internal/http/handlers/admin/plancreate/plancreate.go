// Package plancreate создаёт план вместе с товаром и ценой в шлюзе.
package plancreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Service описывает создание плана.
type Service interface {
	Create(ctx context.Context, req models.PlanCreate) (*models.Plan, error)
}

// Handler обрабатывает POST /admin/plans.
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
// @Summary Создать план
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body models.PlanCreate true "План"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /admin/plans [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.plancreate"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.PlanCreate
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

	plan, err := h.service.Create(r.Context(), req)
	if err != nil {
		log.Error("failed to create plan", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("plan created", slog.String("plan_id", plan.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plan": plan,
	}))
}
