package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
)

// SettlementQuote: расчёт погашения остатка.
type SettlementQuote struct {
	Remaining decimal.Decimal
	Discount  decimal.Decimal
	Final     decimal.Decimal
}

// QuoteSettlement считает остаток по оставшимся месяцам и покрытие токенами.
func QuoteSettlement(monthlyPrice decimal.Decimal, remainingMonths int, tokens decimal.Decimal) SettlementQuote {
	remaining := monthlyPrice.Mul(decimal.NewFromInt(int64(remainingMonths)))
	discount := minDecimal(tokens, remaining)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return SettlementQuote{
		Remaining: remaining,
		Discount:  discount,
		Final:     remaining.Sub(discount),
	}
}

// SettlementKey выводит ключ идемпотентности из состояния пакета и способа оплаты.
// Повтор при том же состоянии не приводит ко второму списанию. Смена карты даёт новый ключ.
func SettlementKey(pkg *models.UserPackage, quote SettlementQuote, paymentMethodRef string) string {
	return fmt.Sprintf("settle-%s-%d-%s-%s", pkg.ID, pkg.RemainingMonths, quote.Final.StringFixed(2), paymentMethodRef)
}

// Settle погашает остаток пакета перед выплатой. Если токенов не хватает, разница
// списывается с карты по умолчанию, и только после успешного платежа одной транзакцией
// списываются токены и пакет переходит в PAYOUT_PENDING.
func (s *Service) Settle(ctx context.Context, packageID, userID string) (*models.UserPackage, error) {
	const op = "billing.Settle"
	log := s.log.With(sl.Op(op), slog.String("package_id", packageID))

	pkg, err := s.ownedPackage(ctx, packageID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pkg.Status != models.PackageActive {
		return nil, fmt.Errorf("%s: %w", op, apperr.Conflict("only active packages can be settled"))
	}
	plan, err := s.repo.GetPlan(ctx, pkg.PlanID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	quote := QuoteSettlement(plan.Price, pkg.RemainingMonths, pkg.Tokens)
	billingLog := models.BillingLog{
		PackageID:   pkg.ID,
		Amount:      quote.Final,
		MonthNumber: models.PlanTermMonths,
		Status:      models.BillingSettled,
	}

	if quote.Final.IsPositive() {
		customerRef, pmRef, err := s.defaultPaymentMethod(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		charge, err := s.gateway.Charge(ctx, paymentgateway.ChargeRequest{
			CustomerRef:      customerRef,
			PaymentMethodRef: pmRef,
			Amount:           quote.Final,
			Description:      "Remaining balance of " + plan.Name,
			IdempotencyKey:   SettlementKey(pkg, quote, pmRef),
			Metadata:         map[string]string{"package_id": pkg.ID, "user_id": user.ID},
		})
		if err != nil {
			metrics.GatewayCharges.WithLabelValues("settlement", metrics.OutcomeFailure).Inc()
			log.Warn("settlement charge failed", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		metrics.GatewayCharges.WithLabelValues("settlement", metrics.OutcomeSuccess).Inc()
		billingLog.Status = models.BillingSucceeded
		billingLog.GatewayRef = charge.ID
		log.Info("settlement charged", slog.String("charge_ref", charge.ID), slog.String("amount", quote.Final.String()))
	}

	settled, err := s.repo.CompleteSettlement(ctx, models.Settlement{
		PackageID:  pkg.ID,
		Discount:   quote.Discount,
		BillingLog: billingLog,
	})
	if err != nil {
		if billingLog.GatewayRef != "" {
			log.Error("settlement charged but not stored", slog.String("charge_ref", billingLog.GatewayRef), sl.Err(err))
			s.reconcile(ctx, "settlement charged but package was not updated", err, map[string]string{
				"package_id": pkg.ID,
				"charge_ref": billingLog.GatewayRef,
				"amount":     quote.Final.String(),
			})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if pkg.ExternalSubscriptionRef != nil && *pkg.ExternalSubscriptionRef != "" {
		if err := s.gateway.CancelSubscription(ctx, *pkg.ExternalSubscriptionRef); err != nil {
			log.Error("failed to cancel agreement of settled package", sl.Err(err))
			s.reconcile(ctx, "settled package still has an active recurring agreement", err, map[string]string{
				"package_id":       pkg.ID,
				"subscription_ref": *pkg.ExternalSubscriptionRef,
			})
		}
	}

	log.Info("package settled",
		slog.String("remaining", quote.Remaining.String()),
		slog.String("discount", quote.Discount.String()),
		slog.String("charged", quote.Final.String()))
	s.notify(ctx, notifier.SubjectSettlementCompleted, user.Email, notifier.Data{
		Username: user.Username,
		PlanName: plan.Name,
		Amount:   quote.Final,
	})
	return settled, nil
}
