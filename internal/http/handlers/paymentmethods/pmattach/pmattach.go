// Package pmattach привязывает карту к клиенту пользователя в шлюзе.
package pmattach

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/services/paymentmethods"
)

// Service описывает привязку карты.
type Service interface {
	Attach(ctx context.Context, userID string, req paymentmethods.AttachRequest) (*models.PaymentMethod, error)
}

// Handler обрабатывает POST /payment-methods.
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
// @Summary Привязать карту
// @Tags PaymentMethods
// @Accept  json
// @Produce  json
// @Param request body paymentmethods.AttachRequest true "Карта"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Карта привязана к другому клиенту"
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /payment-methods [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.paymentmethods.attach"
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

	var req paymentmethods.AttachRequest
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

	pm, err := h.service.Attach(r.Context(), userID, req)
	if err != nil {
		log.Error("failed to attach payment method", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"paymentMethod": pm,
	}))
}
