// Package assign назначает пользователю план от имени администратора.
//
// Без billing пакет промо: соглашение в шлюзе не создаётся и списаний нет.
package assign

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
	"github.com/magabrotheeeer/subscription-billing/internal/services/billing"
)

// Request: тело запроса на назначение плана.
type Request struct {
	UserID  string `json:"userId" validate:"required"`
	PlanID  string `json:"planId" validate:"required"`
	Billing bool   `json:"billing"`
}

// Service описывает назначение плана.
type Service interface {
	Assign(ctx context.Context, userID, planID string, opts billing.AssignOptions) (*models.UserPackage, error)
}

// Handler обрабатывает POST /admin/packages.
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
// @Summary Назначить план пользователю
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Пользователь и план"
// @Success 201 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /admin/packages [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.assign"
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

	pkg, err := h.service.Assign(r.Context(), req.UserID, req.PlanID, billing.AssignOptions{Billing: req.Billing})
	if err != nil {
		log.Error("failed to assign plan", slog.String("user_id", req.UserID), slog.String("plan_id", req.PlanID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("plan assigned", slog.String("package_id", pkg.ID), slog.Bool("billing", req.Billing))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"package": pkg,
	}))
}
