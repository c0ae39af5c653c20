// Package webhook принимает события платёжного шлюза.
//
// Подпись проверяется до любой обработки. Ответ не 2xx заставляет шлюз повторить доставку,
// поэтому ошибки обработки (в том числе пакет, который ещё не записан) возвращаются как есть.
package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-billing/internal/http/response"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
)

// maxBodyBytes: предел размера тела события.
const maxBodyBytes = 65536

// SignatureHeader: заголовок с подписью события.
const SignatureHeader = "Stripe-Signature"

// Parser проверяет подпись и разбирает событие.
type Parser interface {
	ParseEvent(payload []byte, signature string) (*paymentgateway.Event, error)
}

// Service применяет событие к пакетам.
type Service interface {
	HandleEvent(ctx context.Context, evt *paymentgateway.Event) error
}

// Handler обрабатывает POST /webhooks/stripe.
type Handler struct {
	log     *slog.Logger
	parser  Parser
	service Service
}

// New создает Handler.
func New(log *slog.Logger, parser Parser, service Service) *Handler {
	return &Handler{
		log:     log,
		parser:  parser,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного шлюза
// @Tags Webhooks
// @Accept  json
// @Produce  json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Пакет ещё не записан, шлюз повторит доставку"
// @Router /webhooks/stripe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	evt, err := h.parser.ParseEvent(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		log.Warn("webhook rejected", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}
	log = log.With(slog.String("event_id", evt.ID), slog.String("event_type", evt.Type))

	if err := h.service.HandleEvent(r.Context(), evt); err != nil {
		log.Error("failed to handle event", sl.Err(err))
		response.WriteError(w, r, err)
		return
	}

	log.Info("event handled")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"received": true}))
}
