// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков и перевода доменных ошибок в HTTP-статусы.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status: статус запроса ("OK" или "Error").
// Поле Error: текст ошибки (опционально, при неуспехе).
// Поле Data: данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse: структура ошибки. Code заполняется кодом платёжного шлюза, если он есть.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	Code   string `json:"code,omitempty" example:"card_declined"`
}

const (
	// StatusOK: значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError: значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// FromError выбирает HTTP-статус по доменной ошибке и формирует тело ответа.
// Текст непредвиденных ошибок наружу не отдаётся.
func FromError(err error) (int, ErrorResponse) {
	var gwErr *apperr.GatewayError
	var vErr *apperr.ValidationError

	switch {
	case errors.As(err, &gwErr):
		return http.StatusBadGateway, ErrorResponse{Status: StatusError, Error: gwErr.Message, Code: gwErr.Code}
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, Error(vErr.Condition)
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity, Error("validation failed")
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, Error(rootMessage(err, apperr.ErrNotFound))
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, Error(rootMessage(err, apperr.ErrConflict))
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, Error("unauthorized")
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, Error("forbidden")
	case errors.Is(err, apperr.ErrExternalService):
		return http.StatusBadGateway, Error("payment gateway error")
	default:
		return http.StatusInternalServerError, Error("internal error")
	}
}

// rootMessage вырезает из цепочки префиксы op и оставляет доменное сообщение.
func rootMessage(err, sentinel error) string {
	msg := err.Error()
	// "<op>: <сообщение>: conflict"
	if i := strings.LastIndex(msg, ": "+sentinel.Error()); i >= 0 {
		return afterOp(msg[:i])
	}
	// "<op>: <сущность> not found"
	if i := strings.LastIndex(msg, " "+sentinel.Error()); i >= 0 {
		return afterOp(msg[:i]) + " " + sentinel.Error()
	}
	return sentinel.Error()
}

func afterOp(s string) string {
	if i := strings.LastIndex(s, ": "); i >= 0 {
		return s[i+2:]
	}
	return s
}

// WriteError пишет ответ с ошибкой, статус выбирается FromError.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := FromError(err)
	render.Status(r, status)
	render.JSON(w, r, body)
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "eqfield":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must match %s", err.Field(), err.Param()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "min", "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is out of range", err.Field()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
