// Package settle реализует досрочное погашение остатка по пакету.
//
// Токены пакета идут в скидку, остаток списывается с карты по умолчанию.
package settle

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
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Service описывает погашение остатка.
type Service interface {
	Settle(ctx context.Context, packageID, userID string) (*models.UserPackage, error)
}

// Handler обрабатывает POST /packages/{id}/settle.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Погасить остаток по пакету
// @Tags Packages
// @Produce  json
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Чужой пакет"
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Пакет не активен"
// @Failure 422 {object} response.ErrorResponse "Нет способа оплаты"
// @Failure 502 {object} response.ErrorResponse "Отказ шлюза"
// @Router /packages/{id}/settle [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.packages.settle"
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

	pkg, err := h.service.Settle(r.Context(), packageID, userID)
	if err != nil {
		log.Error("failed to settle package", slog.String("package_id", packageID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("package settled", slog.String("package_id", packageID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"package": pkg,
	}))
}
