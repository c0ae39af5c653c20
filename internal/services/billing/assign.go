package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/alerts"
)

// AssignOptions: параметры назначения плана администратором.
type AssignOptions struct {
	// Billing включает регулярные списания. Без него пакет промо и никогда не тарифицируется.
	Billing bool
}

// Assign назначает пользователю план. С Billing создаётся регулярное соглашение в шлюзе,
// первое списание и счётчики месяцев приходят вебхуком invoice.payment_succeeded.
func (s *Service) Assign(ctx context.Context, userID, planID string, opts AssignOptions) (*models.UserPackage, error) {
	const op = "billing.Assign"
	if !opts.Billing {
		return s.AssignWithoutBilling(ctx, userID, planID)
	}
	log := s.log.With(sl.Op(op), slog.String("user_id", userID), slog.String("plan_id", planID))

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, err := activePlan(ctx, s.repo, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if plan.ExternalPriceRef == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("plan has no gateway price"))
	}
	customerRef, pmRef, err := s.defaultPaymentMethod(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	pkg := models.UserPackage{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		PlanID:          plan.ID,
		Status:          models.PackageActive,
		StartDate:       now,
		PaidMonths:      0,
		RemainingMonths: models.PlanTermMonths,
		NextBillingDate: &now,
		Tokens:          decimal.Zero,
		PayoutAmount:    decimal.Zero,
	}

	sub, err := s.gateway.CreateSubscription(ctx, paymentgateway.SubscriptionRequest{
		CustomerRef:      customerRef,
		PriceRef:         plan.ExternalPriceRef,
		PaymentMethodRef: pmRef,
		Metadata:         map[string]string{"package_id": pkg.ID, "user_id": user.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pkg.ExternalSubscriptionRef = &sub.ID

	if err := s.repo.CreatePackage(ctx, models.NewPackage{Package: pkg}); err != nil {
		log.Error("failed to store package, canceling agreement",
			slog.String("subscription_ref", sub.ID), sl.Err(err))
		if cErr := s.gateway.CancelSubscription(ctx, sub.ID); cErr != nil {
			s.alerts.Raise(ctx, models.OpsAlert{
				Kind:    alerts.KindCompensationFailed,
				Message: "agreement created for a package that was not stored",
				Fields: map[string]string{
					"subscription_ref": sub.ID,
					"package_id":       pkg.ID,
					"error":            cErr.Error(),
				},
			})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("package assigned", slog.String("package_id", pkg.ID), slog.String("subscription_ref", sub.ID))
	return &pkg, nil
}

// AssignWithoutBilling назначает промо-пакет: ACTIVE, без списаний, полный срок впереди.
func (s *Service) AssignWithoutBilling(ctx context.Context, userID, planID string) (*models.UserPackage, error) {
	const op = "billing.AssignWithoutBilling"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pkg := models.UserPackage{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		PlanID:          plan.ID,
		Status:          models.PackageActive,
		StartDate:       s.now(),
		PaidMonths:      0,
		RemainingMonths: models.PlanTermMonths,
		Tokens:          decimal.Zero,
		PayoutAmount:    decimal.Zero,
		BillingStopped:  true,
	}
	if err := s.repo.CreatePackage(ctx, models.NewPackage{Package: pkg}); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("promotional package assigned",
		slog.String("package_id", pkg.ID), slog.String("user_id", user.ID), slog.String("plan_id", plan.ID))
	return &pkg, nil
}
