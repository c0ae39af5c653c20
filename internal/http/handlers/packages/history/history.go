// Package history отдаёт журналы списаний и начислений по пакету.
package history

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

// Service описывает чтение истории пакета.
type Service interface {
	PackageHistory(ctx context.Context, userID, packageID string) (*models.PackageHistory, error)
}

// Handler обрабатывает GET /packages/{id}/history.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary История пакета
// @Description Списания по месяцам и начисления токенов по вехам
// @Tags Packages
// @Produce  json
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Чужой пакет"
// @Failure 404 {object} response.ErrorResponse
// @Router /packages/{id}/history [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.packages.history"
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

	history, err := h.service.PackageHistory(r.Context(), userID, packageID)
	if err != nil {
		log.Error("failed to load package history", slog.String("package_id", packageID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(history))
}
