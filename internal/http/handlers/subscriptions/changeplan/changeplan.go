// Package changeplan переводит соглашение пакета на цену другого плана.
package changeplan

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/billing"
)

// Service описывает смену плана.
type Service interface {
	ChangePlan(ctx context.Context, userID, packageID string, req billing.ChangePlanRequest) (*paymentgateway.Subscription, error)
}

// Handler обрабатывает POST /subscriptions/{id}/plan.
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
// @Summary Сменить план соглашения
// @Description С invoiceNow разница выставляется счётом сразу, иначе переходит в следующий счёт.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param id path string true "ID пакета"
// @Param request body billing.ChangePlanRequest true "Новый план"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /subscriptions/{id}/plan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.changeplan"
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

	var req billing.ChangePlanRequest
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
	packageID := chi.URLParam(r, "id")

	sub, err := h.service.ChangePlan(r.Context(), userID, packageID, req)
	if err != nil {
		log.Error("failed to change plan", slog.String("package_id", packageID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("plan changed", slog.String("package_id", packageID), slog.String("plan_id", req.PlanID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriptionId": sub.ID,
		"status":         sub.Status,
	}))
}
