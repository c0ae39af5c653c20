package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
)

// ListPackages возвращает пакеты пользователя.
func (s *Service) ListPackages(ctx context.Context, userID string) ([]*models.UserPackage, error) {
	const op = "billing.ListPackages"
	pkgs, err := s.repo.ListPackagesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pkgs, nil
}

// PackageHistory возвращает пакет владельца с журналами списаний и начислений.
func (s *Service) PackageHistory(ctx context.Context, userID, packageID string) (*models.PackageHistory, error) {
	const op = "billing.PackageHistory"

	pkg, err := s.ownedPackage(ctx, packageID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	billingLogs, err := s.repo.ListBillingLogs(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refundLogs, err := s.repo.ListRefundLogs(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.PackageHistory{Package: pkg, BillingLogs: billingLogs, RefundLogs: refundLogs}, nil
}

// ListPayments возвращает платежи пользователя по соглашениям.
func (s *Service) ListPayments(ctx context.Context, userID string) ([]*models.SubscriptionPayment, error) {
	const op = "billing.ListPayments"
	payments, err := s.repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}

// NormalizeDashboard проверяет частичное обновление и дополняет пару месяцев
// так, чтобы paid + remaining равнялось сроку плана.
func NormalizeDashboard(upd models.DashboardUpdate) (models.DashboardUpdate, error) {
	if upd.Empty() {
		return upd, apperr.Validation("at least one field is required")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return upd, apperr.Validation("unknown package status " + string(*upd.Status))
	}
	if upd.Tokens != nil && upd.Tokens.IsNegative() {
		return upd, apperr.Validation("tokens must not be negative")
	}
	if upd.PayoutAmount != nil && upd.PayoutAmount.IsNegative() {
		return upd, apperr.Validation("payoutAmount must not be negative")
	}

	// После выплаты remainingMonths обнуляется, а paidMonths сохраняет прежнее значение.
	completed := upd.Status != nil && *upd.Status == models.PackagePayoutCompleted
	switch {
	case upd.PaidMonths != nil && upd.RemainingMonths == nil && !completed:
		remaining := models.PlanTermMonths - *upd.PaidMonths
		upd.RemainingMonths = &remaining
	case upd.RemainingMonths != nil && upd.PaidMonths == nil && !completed:
		paid := models.PlanTermMonths - *upd.RemainingMonths
		upd.PaidMonths = &paid
	}
	if upd.PaidMonths != nil && (*upd.PaidMonths < 0 || *upd.PaidMonths > models.PlanTermMonths) {
		return upd, apperr.Validation("paidMonths must be within the plan term")
	}
	if upd.RemainingMonths != nil && (*upd.RemainingMonths < 0 || *upd.RemainingMonths > models.PlanTermMonths) {
		return upd, apperr.Validation("remainingMonths must be within the plan term")
	}
	if completed {
		if upd.RemainingMonths != nil && *upd.RemainingMonths != 0 {
			return upd, apperr.Validation("remainingMonths must be 0 for a completed payout")
		}
		return upd, nil
	}
	if upd.PaidMonths != nil && upd.RemainingMonths != nil &&
		*upd.PaidMonths+*upd.RemainingMonths != models.PlanTermMonths {
		return upd, apperr.Validation("paidMonths + remainingMonths must equal the plan term")
	}
	return upd, nil
}

// UpdateDashboard применяет ручную корректировку пакета и его сделки одной транзакцией.
func (s *Service) UpdateDashboard(ctx context.Context, packageID string, upd models.DashboardUpdate) (*models.UserPackage, error) {
	const op = "billing.UpdateDashboard"

	upd, err := NormalizeDashboard(upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pkg, err := s.repo.UpdateDashboard(ctx, packageID, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("dashboard updated", sl.Op(op), slog.String("package_id", packageID))
	return pkg, nil
}

// Remove удаляет пакет администратором. Повторное удаление ничего не меняет.
// Регулярное соглашение пакета отменяется в шлюзе.
func (s *Service) Remove(ctx context.Context, packageID string) (*models.UserPackage, error) {
	const op = "billing.Remove"
	log := s.log.With(sl.Op(op), slog.String("package_id", packageID))

	pkg, changed, err := s.repo.RemovePackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		log.Info("package already removed")
		return pkg, nil
	}

	if pkg.ExternalSubscriptionRef != nil && *pkg.ExternalSubscriptionRef != "" {
		if err := s.gateway.CancelSubscription(ctx, *pkg.ExternalSubscriptionRef); err != nil {
			log.Error("failed to cancel agreement of removed package", sl.Err(err))
			s.reconcile(ctx, "removed package still has an active recurring agreement", err, map[string]string{
				"package_id":       pkg.ID,
				"subscription_ref": *pkg.ExternalSubscriptionRef,
			})
		}
	}
	log.Info("package removed")
	return pkg, nil
}
