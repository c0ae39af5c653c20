package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/month"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
)

// AvailableTokens суммирует токены пакетов, которые ещё могут их тратить.
func AvailableTokens(pkgs []*models.UserPackage) decimal.Decimal {
	total := decimal.Zero
	for _, p := range pkgs {
		if p.Status.IsTerminal() || !p.Tokens.IsPositive() {
			continue
		}
		total = total.Add(p.Tokens)
	}
	return total
}

// PlanDeductions распределяет amount по пакетам, начиная с самого старого.
// Пакеты в конечном состоянии и без токенов пропускаются.
func PlanDeductions(pkgs []*models.UserPackage, amount decimal.Decimal) []models.TokenDeduction {
	ordered := make([]*models.UserPackage, 0, len(pkgs))
	for _, p := range pkgs {
		if p.Status.IsTerminal() || !p.Tokens.IsPositive() {
			continue
		}
		ordered = append(ordered, p)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].StartDate.Before(ordered[j].StartDate)
	})

	var out []models.TokenDeduction
	left := amount
	for _, p := range ordered {
		if !left.IsPositive() {
			break
		}
		take := minDecimal(p.Tokens, left)
		out = append(out, models.TokenDeduction{PackageID: p.ID, Amount: take})
		left = left.Sub(take)
	}
	return out
}

// SubscriptionKey выводит ключ идемпотентности первого платежа. Без requestID повторная
// покупка того же плана в тот же день считается повтором запроса.
func SubscriptionKey(userID, planID, requestID string, now time.Time) string {
	if requestID != "" {
		return "subscribe-" + userID + "-" + requestID
	}
	return "subscribe-" + userID + "-" + planID + "-" + now.UTC().Format("2006-01-02")
}

// packageIDFor даёт детерминированный ID пакета, чтобы повтор упирался в уже созданный пакет.
func packageIDFor(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// SubscribeWithTokens покупает план: первый месяц оплачивается со скидкой из накопленных токенов,
// дальнейшие списания идут по регулярному соглашению с отсрочкой до следующей даты списания.
// Токены списываются и пакет создаётся одной транзакцией только после успешного платежа.
func (s *Service) SubscribeWithTokens(ctx context.Context, userID, planID, requestID string) (*models.UserPackage, error) {
	const op = "billing.SubscribeWithTokens"
	log := s.log.With(sl.Op(op), slog.String("user_id", userID), slog.String("plan_id", planID))

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	plan, err := activePlan(ctx, s.repo, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	owned, err := s.repo.ListPackagesByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	discount := minDecimal(AvailableTokens(owned), plan.Price)
	final := plan.Price.Sub(discount)
	deductions := PlanDeductions(owned, discount)

	customerRef, pmRef, err := s.defaultPaymentMethod(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	key := SubscriptionKey(user.ID, plan.ID, requestID, now)
	if existing, ok := s.replayed(ctx, packageIDFor(key), user.ID); ok {
		log.Info("subscription request replayed", slog.String("package_id", existing.ID))
		return existing, nil
	}

	next := month.AddMonths(now, 1)
	pkg := models.UserPackage{
		ID:              packageIDFor(key),
		UserID:          user.ID,
		PlanID:          plan.ID,
		Status:          models.PackageActive,
		StartDate:       now,
		PaidMonths:      1,
		RemainingMonths: models.PlanTermMonths - 1,
		NextBillingDate: &next,
		Tokens:          decimal.Zero,
		PayoutAmount:    decimal.Zero,
	}
	billingLog := models.BillingLog{
		PackageID:   pkg.ID,
		Amount:      final,
		MonthNumber: 1,
		Status:      models.BillingSettled,
	}

	if final.IsPositive() {
		charge, err := s.gateway.Charge(ctx, paymentgateway.ChargeRequest{
			CustomerRef:      customerRef,
			PaymentMethodRef: pmRef,
			Amount:           final,
			Description:      "First month of " + plan.Name,
			IdempotencyKey:   key,
			Metadata:         map[string]string{"package_id": pkg.ID, "user_id": user.ID},
		})
		if err != nil {
			metrics.GatewayCharges.WithLabelValues("subscribe", metrics.OutcomeFailure).Inc()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		metrics.GatewayCharges.WithLabelValues("subscribe", metrics.OutcomeSuccess).Inc()
		billingLog.Status = models.BillingSucceeded
		billingLog.GatewayRef = charge.ID
		log.Info("first month charged",
			slog.String("package_id", pkg.ID),
			slog.String("charge_ref", charge.ID),
			slog.String("amount", final.String()),
			slog.String("discount", discount.String()))
	}

	err = s.repo.CreatePackage(ctx, models.NewPackage{
		Package:    pkg,
		Deductions: deductions,
		BillingLog: &billingLog,
	})
	if err != nil {
		// Параллельный повтор с тем же ключом мог создать пакет первым.
		if existing, ok := s.replayed(ctx, pkg.ID, user.ID); ok {
			log.Info("subscription request replayed", slog.String("package_id", existing.ID))
			return existing, nil
		}
		log.Error("failed to store package after charge", slog.String("package_id", pkg.ID), sl.Err(err))
		if billingLog.GatewayRef != "" {
			s.reconcile(ctx, "first month charged but package was not stored", err, map[string]string{
				"package_id": pkg.ID,
				"user_id":    user.ID,
				"charge_ref": billingLog.GatewayRef,
				"amount":     final.String(),
			})
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if billingLog.GatewayRef != "" {
		if err := s.repo.InsertSubscriptionPayment(ctx, models.SubscriptionPayment{
			UserID:             user.ID,
			PackageID:          pkg.ID,
			PlanID:             plan.ID,
			Amount:             final,
			Status:             models.PaymentCompleted,
			ExternalChargeRef:  billingLog.GatewayRef,
			ExternalPriceRef:   plan.ExternalPriceRef,
			ExternalProductRef: plan.ExternalProductRef,
			PaymentMethodRef:   pmRef,
		}); err != nil {
			log.Error("failed to record first payment", slog.String("package_id", pkg.ID), sl.Err(err))
		}
	}

	if plan.ExternalPriceRef != "" {
		sub, err := s.gateway.CreateSubscription(ctx, paymentgateway.SubscriptionRequest{
			CustomerRef:      customerRef,
			PriceRef:         plan.ExternalPriceRef,
			PaymentMethodRef: pmRef,
			TrialEnd:         &next,
			Metadata:         map[string]string{"package_id": pkg.ID, "user_id": user.ID},
		})
		if err == nil {
			if err = s.repo.SetPackageSubscriptionRef(ctx, pkg.ID, sub.ID); err == nil {
				pkg.ExternalSubscriptionRef = &sub.ID
			}
		}
		if err != nil {
			log.Error("failed to set up recurring agreement", slog.String("package_id", pkg.ID), sl.Err(err))
			s.reconcile(ctx, "package paid for the first month has no recurring agreement", err,
				map[string]string{"package_id": pkg.ID, "user_id": user.ID})
		}
	}

	log.Info("subscribed with tokens", slog.String("package_id", pkg.ID), slog.Int("deductions", len(deductions)))
	s.notify(ctx, notifier.SubjectSubscriptionActivated, user.Email, notifier.Data{
		Username: user.Username,
		PlanName: plan.Name,
		Amount:   final,
		Date:     formatDate(&next),
	})
	return &pkg, nil
}

// replayed возвращает пакет, уже созданный тем же запросом этого пользователя.
func (s *Service) replayed(ctx context.Context, packageID, userID string) (*models.UserPackage, bool) {
	pkg, err := s.repo.GetPackage(ctx, packageID)
	if err != nil || pkg.UserID != userID {
		return nil, false
	}
	return pkg, true
}
