package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/alerts"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
)

// ChangePlanRequest: запрос на смену плана регулярного соглашения.
type ChangePlanRequest struct {
	PlanID string `json:"planId" validate:"required"`
	// InvoiceNow выставляет счёт за разницу сразу, а не в следующем периоде.
	InvoiceNow bool `json:"invoiceNow"`
}

func agreementRef(pkg *models.UserPackage) (string, error) {
	if pkg.ExternalSubscriptionRef == nil || *pkg.ExternalSubscriptionRef == "" {
		return "", apperr.Validation("package has no recurring agreement")
	}
	return *pkg.ExternalSubscriptionRef, nil
}

// CancelSubscription отменяет соглашение в конце текущего периода. Если отметку об отмене
// не удалось сохранить, отмена в шлюзе откатывается; неудачный откат уходит в алерт.
func (s *Service) CancelSubscription(ctx context.Context, userID, packageID string) (*paymentgateway.Subscription, error) {
	const op = "billing.CancelSubscription"
	log := s.log.With(sl.Op(op), slog.String("package_id", packageID))

	pkg, err := s.ownedPackage(ctx, packageID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ref, err := agreementRef(pkg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := s.gateway.SetCancelAtPeriodEnd(ctx, ref, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	endDate := sub.CurrentPeriodEnd
	if err := s.repo.MarkSubscriptionCanceled(ctx, pkg.ID, s.now(), &endDate); err != nil {
		log.Error("failed to store cancellation, reverting agreement", sl.Err(err))
		if _, cErr := s.gateway.SetCancelAtPeriodEnd(ctx, ref, false); cErr != nil {
			s.alerts.Raise(ctx, models.OpsAlert{
				Kind:    alerts.KindCompensationFailed,
				Message: "agreement is scheduled for cancellation but the package does not know it",
				Fields: map[string]string{
					"package_id":       pkg.ID,
					"subscription_ref": ref,
					"store_error":      err.Error(),
					"error":            cErr.Error(),
				},
			})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("agreement scheduled for cancellation", slog.Time("end_date", endDate))
	if user, err := s.repo.GetUser(ctx, userID); err == nil {
		s.notify(ctx, notifier.SubjectSubscriptionCanceled, user.Email, notifier.Data{
			Username: user.Username,
			Date:     formatDate(&endDate),
		})
	}
	return sub, nil
}

// ChangePlan переводит соглашение пакета на цену другого плана.
// Соглашение должно содержать ровно одну позицию.
func (s *Service) ChangePlan(ctx context.Context, userID, packageID string, req ChangePlanRequest) (*paymentgateway.Subscription, error) {
	const op = "billing.ChangePlan"
	log := s.log.With(sl.Op(op), slog.String("package_id", packageID), slog.String("plan_id", req.PlanID))

	pkg, err := s.ownedPackage(ctx, packageID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pkg.Status != models.PackageActive {
		return nil, fmt.Errorf("%s: %w", op, apperr.Conflict("only active packages can change plan"))
	}
	if pkg.PlanID == req.PlanID {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("package is already on this plan"))
	}
	ref, err := agreementRef(pkg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, err := activePlan(ctx, s.repo, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if plan.ExternalPriceRef == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("plan has no gateway price"))
	}

	current, err := s.gateway.GetSubscription(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(current.Items) != 1 {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.Conflict(fmt.Sprintf("agreement must have exactly one item, has %d", len(current.Items))))
	}
	item := current.Items[0]

	proration := paymentgateway.ProrationCreate
	if req.InvoiceNow {
		proration = paymentgateway.ProrationAlwaysInvoice
	}
	updated, err := s.gateway.ChangeSubscriptionPrice(ctx, ref, item.ID, plan.ExternalPriceRef, proration)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.RecordPlanChange(ctx, pkg.ID, plan.ID, pkg.PlanID); err != nil {
		log.Error("agreement price changed but plan change not stored", sl.Err(err))
		s.reconcile(ctx, "agreement price changed but package plan was not updated", err, map[string]string{
			"package_id":       pkg.ID,
			"subscription_ref": ref,
			"new_plan_id":      plan.ID,
			"previous_plan_id": pkg.PlanID,
		})
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("plan changed", slog.String("previous_plan_id", pkg.PlanID), slog.String("proration", proration))
	return updated, nil
}
