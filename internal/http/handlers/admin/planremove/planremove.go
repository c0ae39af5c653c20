// Package planremove деактивирует план и его товар в шлюзе.
package planremove

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
)

// Service описывает удаление плана.
type Service interface {
	Delete(ctx context.Context, planID string) error
}

// Handler обрабатывает DELETE /admin/plans/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удалить план
// @Tags Admin
// @Produce  json
// @Param id path string true "ID плана"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /admin/plans/{id} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.planremove"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	planID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), planID); err != nil {
		log.Error("failed to delete plan", slog.String("plan_id", planID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("plan deleted", slog.String("plan_id", planID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted": planID,
	}))
}
