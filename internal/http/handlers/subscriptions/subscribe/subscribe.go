// Package subscribe оформляет новый пакет с оплатой токенами и картой.
//
// Накопленные токены уменьшают первый платёж, регулярные списания начинаются через месяц.
package subscribe

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
)

// IdempotencyHeader: ключ повтора, если requestId не передан в теле.
const IdempotencyHeader = "Idempotency-Key"

// Request: тело запроса на оформление.
type Request struct {
	PlanID    string `json:"planId" validate:"required"`
	RequestID string `json:"requestId,omitempty" validate:"omitempty,max=64"`
}

// Service описывает оформление пакета.
type Service interface {
	SubscribeWithTokens(ctx context.Context, userID, planID, requestID string) (*models.UserPackage, error)
}

// Handler обрабатывает POST /subscriptions.
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
// @Summary Оформить пакет со скидкой токенами
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body Request true "План"
// @Param Idempotency-Key header string false "Ключ повтора запроса"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Отказ шлюза"
// @Router /subscriptions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.subscribe"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get(IdempotencyHeader)
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	pkg, err := h.service.SubscribeWithTokens(r.Context(), userID, req.PlanID, req.RequestID)
	if err != nil {
		log.Error("failed to subscribe", slog.String("plan_id", req.PlanID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("package subscribed", slog.String("package_id", pkg.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"package": pkg,
	}))
}
