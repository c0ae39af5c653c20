// Package paymentmethods управляет сохранёнными картами пользователя в платёжном шлюзе.
package paymentmethods

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// Repository: операции хранилища с пользователями.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SetExternalCustomerRef(ctx context.Context, userID, customerRef string) error
}

// Gateway: операции шлюза со способами оплаты.
type Gateway interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	DefaultPaymentMethod(ctx context.Context, customerRef string) (string, error)
	SetDefaultPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) error
	AttachPaymentMethod(ctx context.Context, customerRef, paymentMethodRef string) (*models.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, paymentMethodRef string) (*models.PaymentMethod, string, error)
	ListPaymentMethods(ctx context.Context, customerRef string) ([]models.PaymentMethod, error)
}

// AttachRequest: тело запроса на добавление карты.
type AttachRequest struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
	MakeDefault     bool   `json:"makeDefault"`
}

type Service struct {
	repo    Repository
	gateway Gateway
	log     *slog.Logger
}

func New(repo Repository, gateway Gateway, log *slog.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, log: log}
}

func (s *Service) customer(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ExternalCustomerRef != nil && *user.ExternalCustomerRef != "" {
		return *user.ExternalCustomerRef, nil
	}
	ref, err := s.gateway.CreateCustomer(ctx, user.ID, user.Email, user.Username)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetExternalCustomerRef(ctx, user.ID, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// List возвращает карты пользователя с отметкой карты по умолчанию.
func (s *Service) List(ctx context.Context, userID string) ([]models.PaymentMethod, error) {
	const op = "paymentmethods.List"

	customerRef, err := s.customer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	methods, err := s.gateway.ListPaymentMethods(ctx, customerRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defaultRef, err := s.gateway.DefaultPaymentMethod(ctx, customerRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range methods {
		methods[i].IsDefault = methods[i].ID == defaultRef
	}
	return methods, nil
}

// owned проверяет, что карта не привязана к другому клиенту шлюза.
func (s *Service) owned(ctx context.Context, customerRef, paymentMethodRef string) (bool, error) {
	_, owner, err := s.gateway.GetPaymentMethod(ctx, paymentMethodRef)
	if err != nil {
		return false, err
	}
	if owner != "" && owner != customerRef {
		return false, fmt.Errorf("payment method %s: %w", paymentMethodRef, apperr.ErrForbidden)
	}
	return owner == customerRef, nil
}

// Attach привязывает карту к клиенту пользователя и при необходимости делает её картой по умолчанию.
func (s *Service) Attach(ctx context.Context, userID string, req AttachRequest) (*models.PaymentMethod, error) {
	const op = "paymentmethods.Attach"

	customerRef, err := s.customer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.owned(ctx, customerRef, req.PaymentMethodID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pm, err := s.gateway.AttachPaymentMethod(ctx, customerRef, req.PaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.MakeDefault {
		if err := s.gateway.SetDefaultPaymentMethod(ctx, customerRef, pm.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pm.IsDefault = true
	}
	s.log.Info("payment method attached", sl.Op(op), slog.String("user_id", userID), slog.String("last4", pm.Last4))
	return pm, nil
}

// SetDefault делает карту пользователя картой по умолчанию. Чужая карта: ErrForbidden.
func (s *Service) SetDefault(ctx context.Context, userID, paymentMethodRef string) error {
	const op = "paymentmethods.SetDefault"

	customerRef, err := s.customer(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	attached, err := s.owned(ctx, customerRef, paymentMethodRef)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !attached {
		if _, err := s.gateway.AttachPaymentMethod(ctx, customerRef, paymentMethodRef); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := s.gateway.SetDefaultPaymentMethod(ctx, customerRef, paymentMethodRef); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("default payment method changed", sl.Op(op), slog.String("user_id", userID))
	return nil
}
