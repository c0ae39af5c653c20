// Package remove переводит пакет в REMOVED и отменяет его соглашение в шлюзе.
package remove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Service описывает удаление пакета.
type Service interface {
	Remove(ctx context.Context, packageID string) (*models.UserPackage, error)
}

// Handler обрабатывает DELETE /admin/packages/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удалить пакет
// @Tags Admin
// @Produce  json
// @Param id path string true "ID пакета"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Выплата уже проведена"
// @Router /admin/packages/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.remove"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	packageID := chi.URLParam(r, "id")

	pkg, err := h.service.Remove(r.Context(), packageID)
	if err != nil {
		log.Error("failed to remove package", slog.String("package_id", packageID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("package removed", slog.String("package_id", packageID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"package": pkg,
	}))
}
