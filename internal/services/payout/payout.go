// Package payout ведёт заявки на вывод накопленного по пакету в стейблкоинах.
package payout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
)

// Repository: операции хранилища для заявок на выплату.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetPackage(ctx context.Context, packageID string) (*models.UserPackage, error)
	HasPendingPayout(ctx context.Context, packageID string) (bool, error)
	CreatePayoutRequest(ctx context.Context, r models.PayoutRequest) error
	ApprovePayout(ctx context.Context, requestID string, now time.Time) (*models.PayoutRequest, error)
	ListPendingPayouts(ctx context.Context) ([]*models.PayoutRequest, error)
}

// Notifier отправляет письма без ожидания доставки.
type Notifier interface {
	Send(ctx context.Context, subject, email, html string)
}

// Service: сервис заявок на выплату.
type Service struct {
	repo     Repository
	notifier Notifier
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт Service.
func New(repo Repository, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		validate: validator.New(),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var fieldConditions = map[string]string{
	"Stablecoin":           "stablecoin is required",
	"Network":              "network is required",
	"WalletAddress":        "wallet address is required",
	"ConfirmWalletAddress": "wallet address confirmation must match wallet address",
	"Agreed":               "payout terms must be accepted",
}

// validateSubmit возвращает ValidationError с первым нарушенным условием.
func (s *Service) validateSubmit(req models.PayoutSubmit) error {
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	req.ConfirmWalletAddress = strings.TrimSpace(req.ConfirmWalletAddress)
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		if cond, ok := fieldConditions[errs[0].Field()]; ok {
			return apperr.Validation(cond)
		}
		return apperr.Validation(errs[0].Field() + " is invalid")
	}
	return apperr.Validation(err.Error())
}

// Submit создаёт заявку на выплату. Условия проверяются по порядку: пакет существует,
// принадлежит пользователю, оплачен полностью, ожидает выплаты и не имеет открытой заявки.
func (s *Service) Submit(ctx context.Context, userID, packageID string, req models.PayoutSubmit) (*models.PayoutRequest, error) {
	const op = "payout.Submit"

	if err := s.validateSubmit(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pkg, err := s.repo.GetPackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pkg.UserID != userID {
		return nil, fmt.Errorf("%s: package %s: %w", op, packageID, apperr.ErrForbidden)
	}
	if pkg.RemainingMonths != 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("remaining months must be 0"))
	}
	if pkg.Status != models.PackagePayoutPending {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("package status must be PAYOUT_PENDING"))
	}
	pending, err := s.repo.HasPendingPayout(ctx, pkg.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pending {
		metrics.PayoutRequests.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("%s: %w", op, apperr.Conflict("pending payout request already exists"))
	}

	meta, err := json.Marshal(models.PayoutMetadata{Stablecoin: req.Stablecoin, Network: req.Network})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r := models.PayoutRequest{
		ID:            uuid.NewString(),
		PackageID:     pkg.ID,
		UserID:        userID,
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		Stablecoin:    req.Stablecoin,
		Network:       req.Network,
		Metadata:      meta,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreatePayoutRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.PayoutRequests.WithLabelValues("submitted").Inc()
	s.log.Info("payout request submitted", sl.Op(op),
		slog.String("request_id", r.ID), slog.String("package_id", pkg.ID))

	if user, err := s.repo.GetUser(ctx, userID); err == nil {
		s.notify(ctx, notifier.SubjectPayoutRequested, user.Email, notifier.Data{
			Username:      user.Username,
			WalletAddress: r.WalletAddress,
			Network:       r.Network,
		})
	}
	return &r, nil
}

// Approve одобряет заявку и завершает выплату по пакету. Повторное одобрение: ErrConflict.
func (s *Service) Approve(ctx context.Context, requestID string) (*models.PayoutRequest, error) {
	const op = "payout.Approve"

	now := s.now()
	req, err := s.repo.ApprovePayout(ctx, requestID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.PayoutRequests.WithLabelValues("approved").Inc()
	s.log.Info("payout approved", sl.Op(op),
		slog.String("request_id", req.ID), slog.String("package_id", req.PackageID))

	if user, err := s.repo.GetUser(ctx, req.UserID); err == nil {
		s.notify(ctx, notifier.SubjectPayoutApproved, user.Email, notifier.Data{
			Username: user.Username,
			Date:     now.Format("2006-01-02"),
		})
	}
	return req, nil
}

// ListPending возвращает необработанные заявки.
func (s *Service) ListPending(ctx context.Context) ([]*models.PayoutRequest, error) {
	const op = "payout.ListPending"
	list, err := s.repo.ListPendingPayouts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (s *Service) notify(ctx context.Context, subject, email string, data notifier.Data) {
	html, err := notifier.Render(subject, data)
	if err != nil {
		s.log.Error("failed to render notification", slog.String("subject", subject), sl.Err(err))
		return
	}
	s.notifier.Send(ctx, subject, email, html)
}
