// Package apperr содержит таксономию ошибок предметной области.
//
// Сервисы возвращают ошибки, обёрнутые вокруг одного из sentinel-значений,
// а HTTP-слой по errors.Is выбирает статус ответа.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: пользователь, план, пакет или заявка не найдены.
	ErrNotFound = errors.New("not found")
	// ErrValidation: некорректный запрос или нарушено условие перехода состояния.
	ErrValidation = errors.New("validation failed")
	// ErrConflict: повторная заявка, повторное одобрение, дубликат плана в сделке.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized: запрос без валидной аутентификации.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden: пакет принадлежит другому пользователю.
	ErrForbidden = errors.New("forbidden")
	// ErrExternalService: ошибка платёжного шлюза.
	ErrExternalService = errors.New("external service error")
	// ErrInternal: непредвиденная ошибка хранилища.
	ErrInternal = errors.New("internal error")
)

// ValidationError описывает конкретное нарушенное условие.
type ValidationError struct {
	Condition string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Condition)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validation возвращает ValidationError с текстом условия.
func Validation(condition string) error {
	return &ValidationError{Condition: condition}
}

// GatewayError переносит код и сообщение платёжного шлюза до вызывающей стороны.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", ErrExternalService.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrExternalService.Error(), e.Message, e.Code)
}

func (e *GatewayError) Unwrap() error {
	return ErrExternalService
}

// NotFound оборачивает ErrNotFound именем сущности.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

// Conflict оборачивает ErrConflict поясняющим сообщением.
func Conflict(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}
