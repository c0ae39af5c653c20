// Package dashboard реализует частичное обновление пакета и сделки администратором.
//
// Тело проверяется JSON-схемой: неизвестные поля отклоняются, а не игнорируются.
// Согласованность месяцев и неотрицательность сумм проверяет сервис.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/xeipuuv/gojsonschema"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Service описывает обновление пакета.
type Service interface {
	UpdateDashboard(ctx context.Context, packageID string, upd models.DashboardUpdate) (*models.UserPackage, error)
}

// Handler обрабатывает PATCH /admin/packages/{id}/dashboard.
type Handler struct {
	log     *slog.Logger
	service Service
	schema  *gojsonschema.Schema
}

// New создает Handler. Схема компилируется один раз.
func New(log *slog.Logger, service Service) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(updateSchema))
	if err != nil {
		return nil, err
	}
	return &Handler{
		log:     log,
		service: service,
		schema:  schema,
	}, nil
}

// ServeHTTP godoc
// @Summary Обновить пакет и сделку
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID пакета"
// @Param request body models.DashboardUpdate true "Изменяемые поля"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /admin/packages/{id}/dashboard [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.dashboard"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	packageID := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		log.Info("body is not valid json", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		log.Info("schema validation failed", slog.Any("errors", msgs))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error(strings.Join(msgs, ", ")))
		return
	}

	var upd models.DashboardUpdate
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&upd); err != nil {
		log.Info("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	pkg, err := h.service.UpdateDashboard(r.Context(), packageID, upd)
	if err != nil {
		log.Error("failed to update dashboard", slog.String("package_id", packageID), sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("dashboard updated", slog.String("package_id", packageID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"package": pkg,
	}))
}
