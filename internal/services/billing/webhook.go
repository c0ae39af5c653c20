package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-billing/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/month"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
	"github.com/magabrotheeeer/subscription-billing/internal/models"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
)

// HandleEvent направляет проверенное событие шлюза в обработчик по типу.
// Неизвестные типы игнорируются.
func (s *Service) HandleEvent(ctx context.Context, evt *paymentgateway.Event) error {
	switch evt.Type {
	case paymentgateway.EventInvoicePaid:
		return s.HandleInvoicePaid(ctx, evt)
	case paymentgateway.EventInvoiceFailed:
		return s.HandleInvoiceFailed(ctx, evt)
	case paymentgateway.EventSubscriptionDeleted:
		return s.HandleSubscriptionDeleted(ctx, evt)
	default:
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeIgnored).Inc()
		s.log.Debug("webhook event ignored", slog.String("event_id", evt.ID), slog.String("type", evt.Type))
		return nil
	}
}

// HandleInvoicePaid продвигает счётчики месяцев пакета после успешного регулярного списания.
// Повторное событие с тем же ID ничего не меняет. Нулевые счета (пробный период) только фиксируются.
func (s *Service) HandleInvoicePaid(ctx context.Context, evt *paymentgateway.Event) error {
	const op = "billing.HandleInvoicePaid"
	log := s.log.With(sl.Op(op), slog.String("event_id", evt.ID))

	inv := evt.Invoice
	if inv == nil || inv.SubscriptionRef == "" {
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeIgnored).Inc()
		log.Info("invoice without subscription ignored")
		return nil
	}

	if !inv.AmountPaid.IsPositive() {
		fresh, err := s.repo.MarkWebhookEvent(ctx, evt.ID, evt.Type)
		if err != nil {
			metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeFailure).Inc()
			return fmt.Errorf("%s: %w", op, err)
		}
		outcome := metrics.OutcomeIgnored
		if !fresh {
			outcome = metrics.OutcomeDuplicate
		}
		metrics.WebhookEvents.WithLabelValues(evt.Type, outcome).Inc()
		log.Info("zero amount invoice recorded", slog.String("subscription_ref", inv.SubscriptionRef))
		return nil
	}

	next := month.AddMonths(s.now(), 1)
	pkg, applied, err := s.repo.ApplyInvoicePaid(ctx, models.InvoicePaid{
		EventID:         evt.ID,
		EventType:       evt.Type,
		SubscriptionRef: inv.SubscriptionRef,
		NextBillingDate: next,
		Payment: models.SubscriptionPayment{
			Amount:             inv.AmountPaid,
			Status:             models.PaymentCompleted,
			ExternalChargeRef:  inv.ChargeRef,
			ExternalPriceRef:   inv.PriceRef,
			ExternalProductRef: inv.ProductRef,
			PaymentMethodRef:   inv.PaymentMethod,
		},
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeDuplicate).Inc()
		log.Info("duplicate invoice event skipped")
		return nil
	}
	metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeSuccess).Inc()
	log.Info("recurring payment applied",
		slog.String("package_id", pkg.ID),
		slog.Int("paid_months", pkg.PaidMonths),
		slog.Int("remaining_months", pkg.RemainingMonths))

	subject := notifier.SubjectPaymentSucceeded
	if inv.BillingReason == paymentgateway.BillingReasonSubscriptionCreate {
		subject = notifier.SubjectSubscriptionActivated
	}
	data := notifier.Data{
		Amount:          inv.AmountPaid,
		PaidMonths:      pkg.PaidMonths,
		RemainingMonths: pkg.RemainingMonths,
		Date:            formatDate(&next),
	}
	email := inv.CustomerEmail
	if user, err := s.repo.GetUser(ctx, pkg.UserID); err == nil {
		data.Username = user.Username
		email = user.Email
	} else {
		log.Warn("failed to load user for notification", sl.Err(err))
	}
	if plan, err := s.repo.GetPlan(ctx, pkg.PlanID); err == nil {
		data.PlanName = plan.Name
	}
	s.notify(ctx, subject, email, data)
	return nil
}

// HandleInvoiceFailed уведомляет пользователя о неудачном списании. Пакет не меняется.
func (s *Service) HandleInvoiceFailed(ctx context.Context, evt *paymentgateway.Event) error {
	const op = "billing.HandleInvoiceFailed"

	fresh, err := s.repo.MarkWebhookEvent(ctx, evt.ID, evt.Type)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	if !fresh {
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeDuplicate).Inc()
		return nil
	}
	metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeSuccess).Inc()

	if evt.Invoice == nil || evt.Invoice.CustomerEmail == "" {
		s.log.Warn("failed invoice without customer email", sl.Op(op), slog.String("event_id", evt.ID))
		return nil
	}
	s.log.Info("recurring payment failed", sl.Op(op),
		slog.String("event_id", evt.ID), slog.String("subscription_ref", evt.Invoice.SubscriptionRef))
	s.notify(ctx, notifier.SubjectPaymentFailed, evt.Invoice.CustomerEmail, notifier.Data{})
	return nil
}

// HandleSubscriptionDeleted останавливает списания у пакетов отменённого в шлюзе соглашения.
func (s *Service) HandleSubscriptionDeleted(ctx context.Context, evt *paymentgateway.Event) error {
	const op = "billing.HandleSubscriptionDeleted"

	if evt.SubscriptionRef == "" {
		return fmt.Errorf("%s: %w", op, apperr.Validation("subscription reference is required"))
	}
	n, applied, err := s.repo.StopBillingBySubscriptionRef(ctx, evt.ID, evt.Type, evt.SubscriptionRef)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeDuplicate).Inc()
		return nil
	}
	metrics.WebhookEvents.WithLabelValues(evt.Type, metrics.OutcomeSuccess).Inc()
	s.log.Info("billing stopped for canceled agreement", sl.Op(op),
		slog.String("subscription_ref", evt.SubscriptionRef), slog.Int("packages", n))
	return nil
}
